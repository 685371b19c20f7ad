package lessons

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/mongocrud/toolkit/db/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collProduk  = "produk"
	collPesanan = "pesanan"
)

var validationLesson = Lesson{
	Name:        "validation",
	Title:       "Validasi schema",
	Collections: []string{collProduk, collPesanan},
	run:         runValidation,
}

// Kategori are the categories the strict produk schema accepts.
var Kategori = []string{"Elektronik", "Fashion", "Makanan", "Minuman", "Lainnya"}

// StatusPesanan are the order states the pesanan schema accepts.
var StatusPesanan = []string{"pending", "diproses", "dikirim", "selesai", "dibatalkan"}

// EmailPattern is the regular expression the pesanan schema applies to
// the customer's email.
const EmailPattern = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`

func prop(bsonType, desc string, extra ...bson.E) bson.D {
	d := bson.D{{Key: "bsonType", Value: bsonType}}
	d = append(d, extra...)
	if desc != "" {
		d = append(d, bson.E{Key: "description", Value: desc})
	}
	return d
}

func strs(in []string) bson.A {
	out := make(bson.A, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// ProdukSchema is the $jsonSchema validator for produk. With strict set,
// kategori becomes required and limited to Kategori.
func ProdukSchema(strict bool) bson.D {
	required := bson.A{"nama", "harga", "stok"}
	kategori := prop("string", "harus berupa string jika ada")
	if strict {
		required = append(required, "kategori")
		kategori = prop("string", "harus berupa salah satu dari kategori yang ditentukan",
			bson.E{Key: "enum", Value: strs(Kategori)})
	}
	return bson.D{{Key: "$jsonSchema", Value: bson.D{
		{Key: "bsonType", Value: "object"},
		{Key: "required", Value: required},
		{Key: "properties", Value: bson.D{
			{Key: "nama", Value: prop("string", "harus berupa string dan wajib ada")},
			{Key: "harga", Value: prop("number", "harus berupa angka positif dan wajib ada", bson.E{Key: "minimum", Value: 0})},
			{Key: "stok", Value: prop("int", "harus berupa integer positif dan wajib ada", bson.E{Key: "minimum", Value: 0})},
			{Key: "kategori", Value: kategori},
			{Key: "deskripsi", Value: prop("string", "harus berupa string jika ada")},
			{Key: "tanggalDibuat", Value: prop("date", "harus berupa tanggal jika ada")},
		}},
	}}}
}

// PesananSchema is the $jsonSchema validator for pesanan: a customer
// sub-document, at least one item and a known status.
func PesananSchema() bson.D {
	item := bson.D{
		{Key: "bsonType", Value: "object"},
		{Key: "required", Value: bson.A{"produk_id", "nama", "harga", "jumlah"}},
		{Key: "properties", Value: bson.D{
			{Key: "produk_id", Value: prop("objectId", "")},
			{Key: "nama", Value: prop("string", "")},
			{Key: "harga", Value: prop("number", "", bson.E{Key: "minimum", Value: 0})},
			{Key: "jumlah", Value: prop("int", "", bson.E{Key: "minimum", Value: 1})},
		}},
	}
	return bson.D{{Key: "$jsonSchema", Value: bson.D{
		{Key: "bsonType", Value: "object"},
		{Key: "required", Value: bson.A{"kode", "pelanggan", "tanggal", "items"}},
		{Key: "properties", Value: bson.D{
			{Key: "kode", Value: prop("string", "kode pesanan harus berupa string dan wajib ada")},
			{Key: "pelanggan", Value: bson.D{
				{Key: "bsonType", Value: "object"},
				{Key: "required", Value: bson.A{"nama", "email"}},
				{Key: "properties", Value: bson.D{
					{Key: "nama", Value: prop("string", "")},
					{Key: "email", Value: prop("string", "", bson.E{Key: "pattern", Value: EmailPattern})},
					{Key: "telepon", Value: prop("string", "")},
					{Key: "alamat", Value: prop("string", "")},
				}},
			}},
			{Key: "tanggal", Value: prop("date", "")},
			{Key: "items", Value: prop("array", "", bson.E{Key: "minItems", Value: 1}, bson.E{Key: "items", Value: item})},
			{Key: "totalHarga", Value: prop("number", "", bson.E{Key: "minimum", Value: 0})},
			{Key: "status", Value: prop("string", "status pesanan harus salah satu nilai yang ditentukan",
				bson.E{Key: "enum", Value: strs(StatusPesanan)})},
		}},
	}}}
}

// CollModCommand replaces coll's validator, rejecting invalid writes.
func CollModCommand(coll string, validator bson.D) bson.D {
	return bson.D{
		{Key: "collMod", Value: coll},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "strict"},
		{Key: "validationAction", Value: "error"},
	}
}

// expectRejected narrates a write the validator should have refused.
func (e *Env) expectRejected(what string, err error) error {
	switch {
	case err == nil:
		return fmt.Errorf("%s diterima padahal seharusnya ditolak", what)
	case !mongodb.IsValidationFailure(err):
		return err
	}
	e.Console.Linef("%s ditolak oleh validator", what)
	var we mongo.WriteException
	if errors.As(err, &we) && len(we.WriteErrors) > 0 && len(we.WriteErrors[0].Details) > 0 {
		e.Console.JSON("Detail:", we.WriteErrors[0].Details)
	}
	return nil
}

func runValidation(ctx context.Context, e *Env) {
	produk := e.DB.Collection(collProduk)
	pesanan := e.DB.Collection(collPesanan)

	e.Step("Membuat collection produk dengan $jsonSchema", func() error {
		opts := options.CreateCollection().SetValidator(ProdukSchema(false))
		if err := e.DB.CreateCollection(ctx, collProduk, opts); err != nil {
			return err
		}
		e.Console.Line("Collection produk dibuat dengan validator")
		return nil
	})
	e.Step("Data valid", func() error {
		return e.insertOne(ctx, collProduk, bson.D{
			{Key: "nama", Value: "Laptop Asus"},
			{Key: "harga", Value: int64(8_500_000)},
			{Key: "stok", Value: int32(15)},
			{Key: "kategori", Value: "Elektronik"},
			{Key: "deskripsi", Value: "Laptop untuk kebutuhan gaming"},
			{Key: "tanggalDibuat", Value: e.Now()},
		})
	})
	e.Step("Data tidak valid: harga berupa string", func() error {
		_, err := produk.InsertOne(ctx, bson.D{
			{Key: "nama", Value: "Laptop HP"},
			{Key: "harga", Value: "tujuh juta"},
			{Key: "stok", Value: int32(10)},
		})
		return e.expectRejected("Laptop HP", err)
	})

	e.Step("collMod: kategori wajib dan terbatas", func() error {
		if err := e.DB.RunCommand(ctx, CollModCommand(collProduk, ProdukSchema(true))).Err(); err != nil {
			return err
		}
		e.Console.Line("Validator produk diperbarui (validationLevel strict, validationAction error)")
		return nil
	})
	e.Step("Kategori di luar daftar", func() error {
		_, err := produk.InsertOne(ctx, bson.D{
			{Key: "nama", Value: "Sabun Cuci"},
			{Key: "harga", Value: int64(12_000)},
			{Key: "stok", Value: int32(40)},
			{Key: "kategori", Value: "Rumah Tangga"},
		})
		return e.expectRejected("Sabun Cuci", err)
	})
	e.Step("Kategori yang valid", func() error {
		return e.insertOne(ctx, collProduk, bson.D{
			{Key: "nama", Value: "Teh Botol"},
			{Key: "harga", Value: int64(5_000)},
			{Key: "stok", Value: int32(200)},
			{Key: "kategori", Value: "Minuman"},
		})
	})

	e.Step("Membuat collection pesanan dengan schema bersarang", func() error {
		opts := options.CreateCollection().SetValidator(PesananSchema())
		if err := e.DB.CreateCollection(ctx, collPesanan, opts); err != nil {
			return err
		}
		e.Console.Line("Collection pesanan dibuat dengan validator")
		return nil
	})
	order := func(email string, items bson.A, status string) bson.D {
		return bson.D{
			{Key: "kode", Value: "ORD-001"},
			{Key: "pelanggan", Value: bson.D{{Key: "nama", Value: "Andi"}, {Key: "email", Value: email}}},
			{Key: "tanggal", Value: e.Now()},
			{Key: "items", Value: items},
			{Key: "totalHarga", Value: int64(120_000)},
			{Key: "status", Value: status},
		}
	}
	kopi := bson.D{
		{Key: "produk_id", Value: primitive.NewObjectID()},
		{Key: "nama", Value: "Kopi Arabika"},
		{Key: "harga", Value: int64(60_000)},
		{Key: "jumlah", Value: int32(2)},
	}
	e.Step("Pesanan valid", func() error {
		return e.insertOne(ctx, collPesanan, order("andi@example.com", bson.A{kopi}, "pending"))
	})
	e.Step("Pesanan tidak valid: email salah, items kosong", func() error {
		_, err := pesanan.InsertOne(ctx, order("andi-at-example", bson.A{}, "hilang"))
		return e.expectRejected("Pesanan ORD-001 kedua", err)
	})
}
