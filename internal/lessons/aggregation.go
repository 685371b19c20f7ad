package lessons

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	collPenjualan      = "penjualan"
	collProducts       = "products"
	collLaporanBulanan = "laporan_bulanan"
)

var aggregationLesson = Lesson{
	Name:        "aggregation",
	Title:       "Aggregation pipeline",
	Collections: []string{collPenjualan, collProducts, collLaporanBulanan},
	run:         runAggregation,
}

// BucketBoundaries are the $bucket edges for sale totals, in Rupiah.
var BucketBoundaries = []int64{0, 100_000, 500_000, 1_000_000, 5_000_000, 10_000_000}

// Customer is the buyer embedded in a sale.
type Customer struct {
	ID   string `bson:"id"`
	Nama string `bson:"nama"`
	Kota string `bson:"kota"`
}

// Item is one line of a sale.
type Item struct {
	ProdukID primitive.ObjectID `bson:"produk_id"`
	Nama     string             `bson:"nama"`
	Kategori string             `bson:"kategori"`
	Harga    int64              `bson:"harga"`
	Jumlah   int32              `bson:"jumlah"`
}

// Penjualan is one sale.
type Penjualan struct {
	Tanggal    time.Time `bson:"tanggal"`
	Customer   Customer  `bson:"customer"`
	Items      []Item    `bson:"items"`
	Total      int64     `bson:"total"`
	Pembayaran string    `bson:"pembayaran"` // tunai, kredit, transfer
}

// Product is the catalogue entry a sale item points at.
type Product struct {
	ID        primitive.ObjectID `bson:"_id"`
	Nama      string             `bson:"nama"`
	Kategori  string             `bson:"kategori"`
	Harga     int64              `bson:"harga"`
	Deskripsi string             `bson:"deskripsi"`
	Supplier  string             `bson:"supplier"`
}

// SalesFixture returns the catalogue and a quarter of sales over it.
// Totals are the sum of harga*jumlah.
func SalesFixture() ([]Product, []Penjualan) {
	p := func(nama, kategori string, harga int64, desk, supplier string) Product {
		return Product{ID: primitive.NewObjectID(), Nama: nama, Kategori: kategori, Harga: harga, Deskripsi: desk, Supplier: supplier}
	}
	products := []Product{
		p("Laptop Asus", "Elektronik", 8_500_000, "Laptop untuk kebutuhan gaming", "PT Asus Indonesia"),
		p("Mouse Logitech", "Elektronik", 150_000, "Mouse nirkabel", "PT Logitech"),
		p("Kaos Polos", "Fashion", 75_000, "Kaos katun 30s", "CV Kain Jaya"),
		p("Kopi Arabika", "Minuman", 60_000, "Kopi Gayo 250 gram", "Koperasi Gayo"),
		p("Keripik Singkong", "Makanan", 15_000, "Keripik pedas", "UD Renyah"),
	}
	item := func(pr Product, n int32) Item {
		return Item{ProdukID: pr.ID, Nama: pr.Nama, Kategori: pr.Kategori, Harga: pr.Harga, Jumlah: n}
	}
	sale := func(day time.Time, c Customer, pay string, items ...Item) Penjualan {
		var total int64
		for _, it := range items {
			total += it.Harga * int64(it.Jumlah)
		}
		return Penjualan{Tanggal: day, Customer: c, Items: items, Total: total, Pembayaran: pay}
	}
	d := func(m time.Month, day int) time.Time { return time.Date(2023, m, day, 10, 0, 0, 0, time.UTC) }

	andi := Customer{ID: "C001", Nama: "Andi", Kota: "Jakarta"}
	budi := Customer{ID: "C002", Nama: "Budi", Kota: "Bandung"}
	citra := Customer{ID: "C003", Nama: "Citra", Kota: "Surabaya"}
	deni := Customer{ID: "C004", Nama: "Deni", Kota: "Jakarta"}

	laptop, mouse, kaos, kopi, keripik := products[0], products[1], products[2], products[3], products[4]
	sales := []Penjualan{
		sale(d(time.January, 5), andi, "kredit", item(laptop, 1), item(mouse, 1)),
		sale(d(time.January, 12), budi, "tunai", item(kaos, 3), item(keripik, 4)),
		sale(d(time.January, 20), citra, "transfer", item(kopi, 2)),
		sale(d(time.February, 2), deni, "transfer", item(laptop, 2)),
		sale(d(time.February, 14), andi, "tunai", item(kopi, 5), item(keripik, 10)),
		sale(d(time.February, 25), budi, "kredit", item(mouse, 4), item(kaos, 2)),
		sale(d(time.March, 3), citra, "tunai", item(keripik, 3)),
		sale(d(time.March, 18), deni, "kredit", item(mouse, 2), item(kopi, 3), item(kaos, 1)),
	}
	return products, sales
}

func sumOf(expr any) bson.D { return bson.D{{Key: "$sum", Value: expr}} }

func subtotal() bson.D {
	return bson.D{{Key: "$multiply", Value: bson.A{"$items.harga", "$items.jumlah"}}}
}

// TotalPerCityPipeline sums sales per customer city, largest first.
func TotalPerCityPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$customer.kota"},
			{Key: "totalPenjualan", Value: sumOf("$total")},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "totalPenjualan", Value: -1}}}},
	}
}

// AvgPerPaymentPipeline averages sales per payment method.
func AvgPerPaymentPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$pembayaran"},
			{Key: "rataRata", Value: bson.D{{Key: "$avg", Value: "$total"}}},
			{Key: "jumlahTransaksi", Value: sumOf(1)},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "rataRata", Value: -1}}}},
	}
}

// PeriodTotalPipeline totals the sales in [from, to).
func PeriodTotalPipeline(from, to time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "tanggal", Value: bson.D{
			{Key: "$gte", Value: from},
			{Key: "$lt", Value: to},
		}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalPenjualan", Value: sumOf("$total")},
			{Key: "jumlahTransaksi", Value: sumOf(1)},
		}}},
	}
}

// SummaryProjectionPipeline reshapes each sale and counts its items.
func SummaryProjectionPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "tanggal", Value: 1},
			{Key: "customer.nama", Value: 1},
			{Key: "totalPembelian", Value: "$total"},
			{Key: "metodePembayaran", Value: "$pembayaran"},
			{Key: "jumlahItem", Value: bson.D{{Key: "$size", Value: "$items"}}},
		}}},
	}
}

// ItemLinesPipeline unwinds items into one document per line with its
// subtotal.
func ItemLinesPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "tanggal", Value: 1},
			{Key: "customerName", Value: "$customer.nama"},
			{Key: "produk", Value: "$items.nama"},
			{Key: "kategori", Value: "$items.kategori"},
			{Key: "harga", Value: "$items.harga"},
			{Key: "jumlah", Value: "$items.jumlah"},
			{Key: "subtotal", Value: subtotal()},
		}}},
	}
}

// TopProductsPipeline returns the n best sellers by quantity.
func TopProductsPipeline(n int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$items.nama"},
			{Key: "totalTerjual", Value: sumOf("$items.jumlah")},
			{Key: "totalPendapatan", Value: sumOf(subtotal())},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "totalTerjual", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: n}},
	}
}

// PerCategoryPipeline sums quantity and revenue per product category.
func PerCategoryPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$items.kategori"},
			{Key: "totalTerjual", Value: sumOf("$items.jumlah")},
			{Key: "totalPendapatan", Value: sumOf(subtotal())},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "totalPendapatan", Value: -1}}}},
	}
}

// MonthlyPipeline totals sales per calendar month.
func MonthlyPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$project", Value: bson.D{
			{Key: "year", Value: bson.D{{Key: "$year", Value: "$tanggal"}}},
			{Key: "month", Value: bson.D{{Key: "$month", Value: "$tanggal"}}},
			{Key: "total", Value: 1},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "year", Value: "$year"}, {Key: "month", Value: "$month"}}},
			{Key: "totalPenjualan", Value: sumOf("$total")},
			{Key: "jumlahTransaksi", Value: sumOf(1)},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}}}},
	}
}

// ProductLookupPipeline joins each item line with its catalogue entry.
func ProductLookupPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collProducts},
			{Key: "localField", Value: "items.produk_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "product_details"},
		}}},
		{{Key: "$unwind", Value: "$product_details"}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "tanggal", Value: 1},
			{Key: "customer", Value: "$customer.nama"},
			{Key: "produk", Value: "$items.nama"},
			{Key: "deskripsi", Value: "$product_details.deskripsi"},
			{Key: "supplier", Value: "$product_details.supplier"},
			{Key: "harga", Value: "$items.harga"},
			{Key: "jumlah", Value: "$items.jumlah"},
			{Key: "subtotal", Value: subtotal()},
		}}},
	}
}

// FacetPipeline computes per-city, per-payment and overall summaries in
// one pass.
func FacetPipeline() mongo.Pipeline {
	groupTotal := func(key string) bson.A {
		return bson.A{
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: key},
				{Key: "total", Value: sumOf("$total")},
			}}},
			bson.D{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}}}},
		}
	}
	return mongo.Pipeline{
		{{Key: "$facet", Value: bson.D{
			{Key: "penjualanPerKota", Value: groupTotal("$customer.kota")},
			{Key: "penjualanPerMetodePembayaran", Value: groupTotal("$pembayaran")},
			{Key: "ringkasan", Value: bson.A{
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: nil},
					{Key: "totalPenjualan", Value: sumOf("$total")},
					{Key: "rataRataPenjualan", Value: bson.D{{Key: "$avg", Value: "$total"}}},
					{Key: "jumlahTransaksi", Value: sumOf(1)},
					{Key: "penjualanMin", Value: bson.D{{Key: "$min", Value: "$total"}}},
					{Key: "penjualanMax", Value: bson.D{{Key: "$max", Value: "$total"}}},
				}}},
			}},
		}}},
	}
}

// BucketPipeline buckets sales by total using BucketBoundaries; totals of
// 10 million and up land in "Above 10M".
func BucketPipeline() mongo.Pipeline {
	bounds := make(bson.A, len(BucketBoundaries))
	for i, b := range BucketBoundaries {
		bounds[i] = b
	}
	return mongo.Pipeline{
		{{Key: "$bucket", Value: bson.D{
			{Key: "groupBy", Value: "$total"},
			{Key: "boundaries", Value: bounds},
			{Key: "default", Value: "Above 10M"},
			{Key: "output", Value: bson.D{
				{Key: "count", Value: sumOf(1)},
				{Key: "totalPenjualan", Value: sumOf("$total")},
				{Key: "customerIds", Value: bson.D{{Key: "$push", Value: "$customer.id"}}},
			}},
		}}},
	}
}

// ProfitPipeline adds an estimated profit at the given margin and the
// item count, then the profit per item.
func ProfitPipeline(margin float64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$addFields", Value: bson.D{
			{Key: "profit", Value: bson.D{{Key: "$multiply", Value: bson.A{"$total", margin}}}},
			{Key: "itemCount", Value: bson.D{{Key: "$size", Value: "$items"}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "tanggal", Value: 1},
			{Key: "customer", Value: "$customer.nama"},
			{Key: "total", Value: 1},
			{Key: "profit", Value: 1},
			{Key: "itemCount", Value: 1},
			{Key: "profitPerItem", Value: bson.D{{Key: "$divide", Value: bson.A{"$profit", "$itemCount"}}}},
		}}},
	}
}

// MonthlyOutPipeline writes MonthlyPipeline's result over coll.
func MonthlyOutPipeline(coll string) mongo.Pipeline {
	return append(MonthlyPipeline(), bson.D{{Key: "$out", Value: coll}})
}

// MonthlyMergePipeline folds MonthlyPipeline's result into coll: matched
// months are merged, new ones inserted.
func MonthlyMergePipeline(coll string) mongo.Pipeline {
	return append(MonthlyPipeline(), bson.D{{Key: "$merge", Value: bson.D{
		{Key: "into", Value: coll},
		{Key: "on", Value: "_id"},
		{Key: "whenMatched", Value: "merge"},
		{Key: "whenNotMatched", Value: "insert"},
	}}})
}

func runAggregation(ctx context.Context, e *Env) {
	products, sales := SalesFixture()

	e.Step("Menyiapkan data penjualan", func() error {
		if err := e.insertMany(ctx, collProducts, toAny(products)); err != nil {
			return err
		}
		return e.insertMany(ctx, collPenjualan, toAny(sales))
	})

	e.Step("Total penjualan per kota", func() error {
		docs, err := e.aggregateDocs(ctx, collPenjualan, TotalPerCityPipeline())
		if err != nil {
			return err
		}
		for _, d := range docs {
			e.Console.Linef("%v: %s", field(d, "_id"), e.Console.Rupiah(toFloat(field(d, "totalPenjualan"))))
		}
		return nil
	})
	e.Step("Rata-rata penjualan per metode pembayaran", func() error {
		docs, err := e.aggregateDocs(ctx, collPenjualan, AvgPerPaymentPipeline())
		if err != nil {
			return err
		}
		for _, d := range docs {
			e.Console.Linef("%v: rata-rata %s dari %v transaksi", field(d, "_id"), e.Console.Rupiah(toFloat(field(d, "rataRata"))), field(d, "jumlahTransaksi"))
		}
		return nil
	})
	e.Step("$match: penjualan Januari 2023", func() error {
		from := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
		return e.aggregate(ctx, collPenjualan, PeriodTotalPipeline(from, from.AddDate(0, 1, 0)), "Hasil:")
	})
	e.Step("$project: memilih dan membuat field", func() error {
		return e.aggregate(ctx, collPenjualan, SummaryProjectionPipeline(), "Hasil:")
	})
	e.Step("$unwind: membuka array items", func() error {
		return e.aggregate(ctx, collPenjualan, ItemLinesPipeline(), "Hasil:")
	})
	e.Step("Produk terlaris", func() error {
		return e.aggregate(ctx, collPenjualan, TopProductsPipeline(5), "Top 5:")
	})
	e.Step("Penjualan per kategori", func() error {
		return e.aggregate(ctx, collPenjualan, PerCategoryPipeline(), "Hasil:")
	})
	e.Step("Penjualan per bulan", func() error {
		return e.aggregate(ctx, collPenjualan, MonthlyPipeline(), "Hasil:")
	})
	e.Step("$lookup: join dengan products", func() error {
		return e.aggregate(ctx, collPenjualan, ProductLookupPipeline(), "Hasil:")
	})
	e.Step("$facet: beberapa analisis sekaligus", func() error {
		return e.aggregate(ctx, collPenjualan, FacetPipeline(), "Hasil:")
	})
	e.Step("$bucket: mengelompokkan total penjualan", func() error {
		return e.aggregate(ctx, collPenjualan, BucketPipeline(), "Hasil:")
	})
	e.Step("$addFields: profit 30%", func() error {
		return e.aggregate(ctx, collPenjualan, ProfitPipeline(0.3), "Hasil:")
	})
	e.Step("$out: menyimpan laporan bulanan", func() error {
		if _, err := e.aggregateDocs(ctx, collPenjualan, MonthlyOutPipeline(collLaporanBulanan)); err != nil {
			return err
		}
		return e.find(ctx, collLaporanBulanan, bson.D{}, "Isi laporan_bulanan:")
	})
	e.Step("$merge: memperbarui laporan bulanan", func() error {
		late := Penjualan{
			Tanggal:    time.Date(2023, time.April, 1, 9, 0, 0, 0, time.UTC),
			Customer:   Customer{ID: "C005", Nama: "Eko", Kota: "Medan"},
			Items:      []Item{{ProdukID: products[3].ID, Nama: products[3].Nama, Kategori: products[3].Kategori, Harga: products[3].Harga, Jumlah: 1}},
			Total:      products[3].Harga,
			Pembayaran: "tunai",
		}
		if _, err := e.DB.Collection(collPenjualan).InsertOne(ctx, late); err != nil {
			return err
		}
		if _, err := e.aggregateDocs(ctx, collPenjualan, MonthlyMergePipeline(collLaporanBulanan)); err != nil {
			return err
		}
		return e.find(ctx, collLaporanBulanan, bson.D{}, "Isi laporan_bulanan setelah $merge:")
	})
}

// field returns the value of key in d, or nil.
func field(d bson.D, key string) any {
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

// toFloat reads a numeric aggregation result.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
