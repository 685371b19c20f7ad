package lessons

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/mongocrud/pantry/text"
	"github.com/dalemusser/mongocrud/toolkit/db/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	collIdxProducts = "idx_products"
	collArticles    = "articles"
	collPlaces      = "places"
	collSessions    = "sessions"
	collIdxUsers    = "idx_users"
)

var indexingLesson = Lesson{
	Name:        "indexing",
	Title:       "Indexing dan optimasi performa",
	Collections: []string{collIdxProducts, collArticles, collPlaces, collSessions, collIdxUsers},
	run:         runIndexing,
}

// pageSize is the page length in the pagination steps.
const pageSize = 3

// CatalogItem is a product in the indexing lesson. NameCI is the folded
// name used for case and accent insensitive prefix search.
type CatalogItem struct {
	ID            primitive.ObjectID `bson:"_id"`
	Name          string             `bson:"name"`
	NameCI        string             `bson:"name_ci"`
	Category      string             `bson:"category"`
	Brand         string             `bson:"brand"`
	Price         int64              `bson:"price"`
	Quantity      int32              `bson:"quantity"`
	PromotionCode string             `bson:"promotionCode,omitempty"`
	Reviews       []string           `bson:"reviews,omitempty"`
}

// CatalogFixture returns the products, with NameCI already folded.
func CatalogFixture() []CatalogItem {
	mk := func(name, cat, brand string, price int64, qty int32, promo string, reviews ...string) CatalogItem {
		return CatalogItem{
			ID: primitive.NewObjectID(), Name: name, NameCI: text.Fold(name),
			Category: cat, Brand: brand, Price: price, Quantity: qty,
			PromotionCode: promo, Reviews: reviews,
		}
	}
	return []CatalogItem{
		mk("Samsung Galaxy S23", "Electronics", "Samsung", 12_999_000, 10, "HEMAT10", "Kamera bagus", "Baterai awet", "Layar jernih", "Agak mahal"),
		mk("Samsung Smart TV 43\"", "Electronics", "Samsung", 5_499_000, 4, ""),
		mk("Apple iPhone 15", "Electronics", "Apple", 15_999_000, 0, "", "Mulus", "Cepat"),
		mk("Apple MacBook Air", "Electronics", "Apple", 17_499_000, 3, "PELAJAR"),
		mk("Asus Vivobook", "Electronics", "Asus", 7_299_000, 8, ""),
		mk("Sepatu Lari Édition", "Fashion", "Ardiles", 450_000, 25, "LARI5"),
		mk("Kemeja Batik", "Fashion", "Danar Hadi", 350_000, 12, ""),
		mk("Café Latte Sachet", "Makanan", "Kapal Api", 25_000, 100, ""),
		mk("Sambal Bawang", "Makanan", "Bu Rudy", 45_000, 0, ""),
		mk("Samyang Buldak", "Makanan", "Samyang", 28_000, 60, "PEDAS"),
	}
}

// IndexPlan is every index the lesson creates, per collection.
func IndexPlan() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		collIdxProducts: {
			// single field
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName("name_1")},
			// compound
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "price", Value: -1}}},
			// partial: only products in stock
			{
				Keys:    bson.D{{Key: "price", Value: 1}},
				Options: options.Index().SetPartialFilterExpression(bson.D{{Key: "quantity", Value: bson.D{{Key: "$gt", Value: 0}}}}),
			},
			// sparse
			{Keys: bson.D{{Key: "promotionCode", Value: 1}}, Options: options.Index().SetSparse(true)},
			// folded name + _id for prefix search and keyset paging
			{Keys: bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}},
		},
		collArticles: {
			// multikey
			{Keys: bson.D{{Key: "tags", Value: 1}}},
			// text
			{Keys: bson.D{{Key: "content", Value: "text"}}},
		},
		collPlaces: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		},
		collSessions: {
			// TTL: one hour after lastModified
			{Keys: bson.D{{Key: "lastModified", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(3600)},
		},
		collIdxUsers: {
			{Keys: bson.D{{Key: "_id", Value: "hashed"}}},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
}

// FindCommand builds the find command document explain wraps.
func FindCommand(coll string, filter, projection, sort, hint any) bson.D {
	cmd := bson.D{{Key: "find", Value: coll}, {Key: "filter", Value: filter}}
	if projection != nil {
		cmd = append(cmd, bson.E{Key: "projection", Value: projection})
	}
	if sort != nil {
		cmd = append(cmd, bson.E{Key: "sort", Value: sort})
	}
	if hint != nil {
		cmd = append(cmd, bson.E{Key: "hint", Value: hint})
	}
	return cmd
}

func runIndexing(ctx context.Context, e *Env) {
	products := e.DB.Collection(collIdxProducts)
	catalog := CatalogFixture()
	byCategory := bson.D{{Key: "category", Value: "Electronics"}}

	e.Step("Menyiapkan data", func() error {
		if err := e.insertMany(ctx, collIdxProducts, toAny(catalog)); err != nil {
			return err
		}
		if err := e.insertMany(ctx, collArticles, []any{
			bson.D{{Key: "title", Value: "Belajar MongoDB"}, {Key: "tags", Value: bson.A{"database", "nosql"}}, {Key: "content", Value: "MongoDB adalah database dokumen"}},
			bson.D{{Key: "title", Value: "Index itu penting"}, {Key: "tags", Value: bson.A{"database", "performa"}}, {Key: "content", Value: "Index mempercepat query"}},
		}); err != nil {
			return err
		}
		if err := e.insertMany(ctx, collPlaces, []any{
			bson.D{{Key: "name", Value: "Monas"}, {Key: "location", Value: geoPoint(106.8271, -6.1754)}},
			bson.D{{Key: "name", Value: "Gedung Sate"}, {Key: "location", Value: geoPoint(107.6186, -6.9025)}},
		}); err != nil {
			return err
		}
		if err := e.insertMany(ctx, collSessions, []any{
			bson.D{{Key: "user", Value: "andi"}, {Key: "lastModified", Value: e.Now()}},
		}); err != nil {
			return err
		}
		return e.insertMany(ctx, collIdxUsers, []any{
			bson.D{{Key: "email", Value: "andi@example.com"}},
			bson.D{{Key: "email", Value: "budi@example.com"}},
		})
	})

	plan := IndexPlan()
	for _, coll := range []string{collIdxProducts, collArticles, collPlaces, collSessions, collIdxUsers} {
		e.Step("Membuat index pada "+coll, func() error {
			names, err := e.DB.Collection(coll).Indexes().CreateMany(ctx, plan[coll])
			if err != nil {
				return err
			}
			for _, n := range names {
				e.Console.Linef("Index dibuat: %s", n)
			}
			return nil
		})
	}

	e.Step("Index unik menolak email duplikat", func() error {
		_, err := e.DB.Collection(collIdxUsers).InsertOne(ctx, bson.D{{Key: "email", Value: "andi@example.com"}})
		if mongodb.IsDup(err) {
			e.Console.Line("Ditolak: email andi@example.com sudah ada")
			return nil
		}
		if err == nil {
			return fmt.Errorf("email duplikat diterima")
		}
		return err
	})
	e.Step("Pencarian teks", func() error {
		f := bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: "index"}}}}
		return e.find(ctx, collArticles, f, "Artikel tentang index:", options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "title", Value: 1}}))
	})
	e.Step("Query geospasial", func() error {
		f := bson.D{{Key: "location", Value: bson.D{{Key: "$near", Value: bson.D{
			{Key: "$geometry", Value: geoPoint(106.8456, -6.2088)},
			{Key: "$maxDistance", Value: 20_000},
		}}}}}
		return e.find(ctx, collPlaces, f, "Tempat dalam 20 km dari pusat Jakarta:", options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "name", Value: 1}}))
	})

	e.Step("Melihat index yang ada", func() error {
		return e.listIndexes(ctx, collIdxProducts)
	})
	e.Step("Menghapus index name_1", func() error {
		if _, err := products.Indexes().DropOne(ctx, "name_1"); err != nil {
			return err
		}
		e.Console.Line("Index name_1 dihapus")
		return nil
	})

	e.Step("explain(\"executionStats\")", func() error {
		p, err := e.explainFind(ctx, FindCommand(collIdxProducts, byCategory, nil, nil, nil))
		if err != nil {
			return err
		}
		e.narratePlan("category = Electronics", p)
		return nil
	})
	e.Step("Covered query", func() error {
		if _, err := products.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}, {Key: "price", Value: 1}},
		}); err != nil {
			return err
		}
		proj := bson.D{{Key: "_id", Value: 0}, {Key: "name", Value: 1}, {Key: "price", Value: 1}}
		hint := bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}, {Key: "price", Value: 1}}
		p, err := e.explainFind(ctx, FindCommand(collIdxProducts, byCategory, proj, nil, hint))
		if err != nil {
			return err
		}
		e.narratePlan("Proyeksi hanya field index", p)
		if p.Covered() {
			e.Console.Line("Query ter-cover: tidak ada dokumen yang dibaca")
		}
		return nil
	})
	e.Step("Sort dengan index", func() error {
		opts := options.Find().
			SetSort(bson.D{{Key: "price", Value: -1}}).
			SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "name", Value: 1}, {Key: "price", Value: 1}})
		return e.find(ctx, collIdxProducts, byCategory, "Electronics termahal dulu:", opts)
	})
	e.Step("Memaksa index dengan hint", func() error {
		opts := options.Find().
			SetHint(bson.D{{Key: "category", Value: 1}, {Key: "price", Value: -1}}).
			SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "name", Value: 1}})
		return e.find(ctx, collIdxProducts, byCategory, "Hasil dengan hint {category: 1, price: -1}:", opts)
	})

	e.Step("Prefix dengan awalan tetap vs regex bebas", func() error {
		anchored, err := e.explainFind(ctx, FindCommand(collIdxProducts, text.PrefixFilter("name_ci", "Sam"), nil, nil, nil))
		if err != nil {
			return err
		}
		e.narratePlan("name_ci dalam rentang awalan \"sam\"", anchored)

		regex := bson.D{{Key: "name", Value: primitive.Regex{Pattern: "sam", Options: "i"}}}
		free, err := e.explainFind(ctx, FindCommand(collIdxProducts, regex, nil, nil, nil))
		if err != nil {
			return err
		}
		e.narratePlan("regex /sam/i tanpa awalan", free)
		return nil
	})

	e.Step("Pagination dengan skip/limit vs keyset", func() error {
		sortKey := bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}
		page := func(filter any, skip int64) ([]CatalogItem, error) {
			opts := options.Find().SetSort(sortKey).SetLimit(pageSize)
			if skip > 0 {
				opts.SetSkip(skip)
			}
			cur, err := products.Find(ctx, filter, opts)
			if err != nil {
				return nil, err
			}
			var out []CatalogItem
			if err := cur.All(ctx, &out); err != nil {
				return nil, err
			}
			return out, nil
		}

		first, err := page(bson.D{}, 0)
		if err != nil {
			return err
		}
		if len(first) == 0 {
			return fmt.Errorf("halaman pertama kosong")
		}
		bySkip, err := page(bson.D{}, pageSize)
		if err != nil {
			return err
		}

		last := first[len(first)-1]
		token := mongodb.EncodeCursor(last.NameCI, last.ID)
		e.Console.Linef("Cursor halaman berikutnya: %s", token)
		c, ok := mongodb.DecodeCursor(token)
		if !ok {
			return fmt.Errorf("cursor %q tidak valid", token)
		}
		byKeyset, err := page(mongodb.KeysetWindow("name_ci", "gt", c.Key, c.ID), 0)
		if err != nil {
			return err
		}

		e.Console.Linef("Halaman 1: %v", catalogNames(first))
		e.Console.Linef("Halaman 2 (skip %d): %v", pageSize, catalogNames(bySkip))
		e.Console.Linef("Halaman 2 (keyset): %v", catalogNames(byKeyset))
		return nil
	})

	e.Step("Membatasi array dengan $slice", func() error {
		proj := bson.D{{Key: "_id", Value: 0}, {Key: "name", Value: 1}, {Key: "reviews", Value: bson.D{{Key: "$slice", Value: 2}}}}
		f := bson.D{{Key: "category", Value: "Electronics"}, {Key: "reviews", Value: bson.D{{Key: "$exists", Value: true}}}}
		return e.find(ctx, collIdxProducts, f, "Dua review pertama:", options.Find().SetProjection(proj))
	})
	e.Step("$exists dengan sparse index", func() error {
		f := bson.D{{Key: "promotionCode", Value: bson.D{{Key: "$exists", Value: true}}}}
		opts := options.Find().
			SetHint(bson.D{{Key: "promotionCode", Value: 1}}).
			SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "name", Value: 1}, {Key: "promotionCode", Value: 1}})
		return e.find(ctx, collIdxProducts, f, "Produk dengan kode promo:", opts)
	})

	e.Step("Read concern dan write concern", func() error {
		local := e.DB.Collection(collIdxProducts, options.Collection().SetReadConcern(readconcern.Local()))
		n, err := local.CountDocuments(ctx, bson.D{})
		if err != nil {
			return err
		}
		e.Console.Linef("Read concern local: %d produk", n)

		majority := e.DB.Collection(collIdxProducts, options.Collection().SetWriteConcern(writeconcern.Majority()))
		item := CatalogItem{ID: primitive.NewObjectID(), Name: "New Product", NameCI: text.Fold("New Product"), Category: "Lainnya"}
		if _, err := majority.InsertOne(ctx, item); err != nil {
			return err
		}
		e.Console.Line("Write concern majority: dokumen tersimpan")
		return nil
	})

	e.Step("Ukuran index", func() error {
		docs, err := e.aggregateDocs(ctx, collIdxProducts, mongo.Pipeline{
			{{Key: "$collStats", Value: bson.D{{Key: "storageStats", Value: bson.D{}}}}},
		})
		if err != nil {
			return err
		}
		for _, d := range docs {
			stats := asMap(field(d, "storageStats"))
			e.Console.JSON("Ukuran index (byte):", stats["indexSizes"])
			e.Console.Linef("Total ukuran index: %d byte", toInt64(stats["totalIndexSize"]))
		}
		return nil
	})

	e.Step("Profiler untuk query lambat", func() error {
		slow := 100 * time.Millisecond
		set := bson.D{{Key: "profile", Value: 1}, {Key: "slowms", Value: slow.Milliseconds()}}
		if err := e.DB.RunCommand(ctx, set).Err(); err != nil {
			return err
		}
		defer func() {
			_ = e.DB.RunCommand(context.WithoutCancel(ctx), bson.D{{Key: "profile", Value: 0}}).Err()
		}()
		e.Console.Linef("Profiler aktif untuk query di atas %d ms", slow.Milliseconds())

		opts := options.Find().SetSort(bson.D{{Key: "ts", Value: -1}}).SetLimit(10).
			SetProjection(bson.D{{Key: "op", Value: 1}, {Key: "ns", Value: 1}, {Key: "millis", Value: 1}})
		return e.find(ctx, "system.profile", bson.D{}, "Query lambat terakhir:", opts)
	})
}

func geoPoint(lng, lat float64) bson.D {
	return bson.D{{Key: "type", Value: "Point"}, {Key: "coordinates", Value: bson.A{lng, lat}}}
}

func catalogNames(items []CatalogItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}
