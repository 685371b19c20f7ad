package lessons

import (
	"context"
	"fmt"

	"github.com/dalemusser/mongocrud/toolkit/db/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collMahasiswa = "mahasiswa"

var basicLesson = Lesson{
	Name:        "basic",
	Title:       "Operasi dasar MongoDB",
	Collections: []string{collMahasiswa},
	run:         runBasic,
}

// AvgMatematikaPipeline averages the math score over every student.
func AvgMatematikaPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "rataRataMatematika", Value: bson.D{{Key: "$avg", Value: "$nilai.matematika"}}},
		}}},
	}
}

// PerJurusanPipeline counts students and averages math per major.
func PerJurusanPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$jurusan"},
			{Key: "jumlahMahasiswa", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "nilaiRataRata", Value: bson.D{{Key: "$avg", Value: "$nilai.matematika"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func runBasic(ctx context.Context, e *Env) {
	c := e.DB.Collection(collMahasiswa)

	students, err := loadMahasiswa()
	if err != nil {
		e.Step("Memuat data mahasiswa", func() error { return err })
		return
	}

	e.Step("Membuat collection mahasiswa", func() error {
		if err := e.DB.CreateCollection(ctx, collMahasiswa); err != nil {
			return err
		}
		e.Console.Line("Collection mahasiswa dibuat")
		return nil
	})

	e.Step("Menambahkan satu dokumen", func() error {
		return e.insertOne(ctx, collMahasiswa, students[0])
	})
	e.Step("Menambahkan banyak dokumen", func() error {
		return e.insertMany(ctx, collMahasiswa, toAny(students[1:]))
	})

	e.Step("Membaca semua dokumen", func() error {
		return e.find(ctx, collMahasiswa, bson.D{}, "Semua mahasiswa:")
	})
	e.Step("Membaca dengan filter", func() error {
		return e.find(ctx, collMahasiswa, bson.D{{Key: "jurusan", Value: "Teknik Informatika"}}, "Mahasiswa Teknik Informatika:")
	})
	e.Step("Membaca satu dokumen", func() error {
		var doc bson.D
		if err := c.FindOne(ctx, bson.D{{Key: "nim", Value: "A12345"}}).Decode(&doc); err != nil {
			return err
		}
		e.Console.JSON("Mahasiswa A12345:", doc)
		return nil
	})
	e.Step("Operator perbandingan", func() error {
		f := bson.D{{Key: "nilai.matematika", Value: bson.D{{Key: "$gte", Value: 85}}}}
		return e.find(ctx, collMahasiswa, f, "Nilai matematika >= 85:")
	})
	e.Step("AND implisit", func() error {
		f := bson.D{{Key: "jurusan", Value: "Sistem Informasi"}, {Key: "status", Value: "aktif"}}
		return e.find(ctx, collMahasiswa, f, "Sistem Informasi yang aktif:")
	})
	e.Step("Operator OR", func() error {
		f := bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "jurusan", Value: "Teknik Informatika"}},
			bson.D{{Key: "status", Value: "cuti"}},
		}}}
		return e.find(ctx, collMahasiswa, f, "Teknik Informatika atau cuti:")
	})
	e.Step("Memilih field tertentu", func() error {
		proj := bson.D{{Key: "nama", Value: 1}, {Key: "nim", Value: 1}, {Key: "_id", Value: 0}}
		return e.find(ctx, collMahasiswa, bson.D{}, "Nama dan NIM:", options.Find().SetProjection(proj))
	})

	e.Step("Mengubah satu dokumen", func() error {
		return e.updated(c.UpdateOne(ctx,
			bson.D{{Key: "nim", Value: "A12345"}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "nilai.matematika", Value: 87}}}}))
	})
	e.Step("Mengubah banyak dokumen", func() error {
		return e.updated(c.UpdateMany(ctx,
			bson.D{{Key: "jurusan", Value: "Sistem Informasi"}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "fakultas", Value: "FTIK"}}}}))
	})
	e.Step("Operator increment", func() error {
		return e.updated(c.UpdateOne(ctx,
			bson.D{{Key: "nim", Value: "A12346"}},
			bson.D{{Key: "$inc", Value: bson.D{{Key: "nilai.pemrograman", Value: 5}}}}))
	})
	e.Step("Menambahkan elemen ke array", func() error {
		return e.updated(c.UpdateOne(ctx,
			bson.D{{Key: "nim", Value: "A12347"}},
			bson.D{{Key: "$push", Value: bson.D{{Key: "hobi", Value: "membaca"}}}}))
	})
	e.Step("Data setelah update", func() error {
		return e.find(ctx, collMahasiswa, bson.D{}, "Semua mahasiswa:")
	})

	e.Step("Menghapus satu dokumen", func() error {
		return e.deleted(c.DeleteOne(ctx, bson.D{{Key: "nim", Value: "A12348"}}))
	})
	e.Step("Menghapus banyak dokumen", func() error {
		return e.deleted(c.DeleteMany(ctx, bson.D{{Key: "status", Value: "cuti"}}))
	})

	e.Step("Menghitung jumlah dokumen", func() error {
		n, err := c.CountDocuments(ctx, bson.D{})
		if err != nil {
			return err
		}
		e.Console.Linef("Jumlah mahasiswa: %d", n)
		return nil
	})
	e.Step("Rata-rata nilai matematika", func() error {
		return e.aggregate(ctx, collMahasiswa, AvgMatematikaPipeline(), "Hasil:")
	})
	e.Step("Mengelompokkan berdasarkan jurusan", func() error {
		return e.aggregate(ctx, collMahasiswa, PerJurusanPipeline(), "Hasil:")
	})

	e.Step("Membuat index unik pada nim", func() error {
		name, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "nim", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return err
		}
		e.Console.Linef("Index dibuat: %s", name)
		return nil
	})
	e.Step("Melihat daftar index", func() error {
		return e.listIndexes(ctx, collMahasiswa)
	})
	e.Step("Menambahkan nim duplikat", func() error {
		_, err := c.InsertOne(ctx, students[0])
		switch {
		case err == nil:
			return fmt.Errorf("nim %s duplikat diterima", students[0].NIM)
		case mongodb.IsDup(err):
			e.Console.Linef("Ditolak oleh index unik: nim %s sudah ada", students[0].NIM)
			return nil
		default:
			return err
		}
	})
}

// listIndexes prints the indexes of coll.
func (e *Env) listIndexes(ctx context.Context, coll string) error {
	cur, err := e.DB.Collection(coll).Indexes().List(ctx)
	if err != nil {
		return err
	}
	specs := []bson.D{}
	if err := cur.All(ctx, &specs); err != nil {
		return err
	}
	e.Console.JSON("Index pada "+coll+":", specs)
	return nil
}
