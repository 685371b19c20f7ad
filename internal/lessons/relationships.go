package lessons

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	collMahasiswaRel = "mahasiswa_rel"
	collMataKuliah   = "mata_kuliah"
	collSiswa        = "siswa"
	collKlub         = "klub"
	collSiswaKlub    = "siswa_klub"
)

var relationshipsLesson = Lesson{
	Name:        "relationships",
	Title:       "Relasi antar dokumen",
	Collections: []string{collMahasiswaRel, collMataKuliah, collSiswa, collKlub, collSiswaKlub},
	run:         runRelationships,
}

// CourseJoinPipeline lists one student's courses joined with their
// mata_kuliah documents.
func CourseJoinPipeline(nim string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "nim", Value: nim}}}},
		{{Key: "$unwind", Value: "$mata_kuliah"}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collMataKuliah},
			{Key: "localField", Value: "mata_kuliah.matakuliah_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "detail_mk"},
		}}},
		{{Key: "$unwind", Value: "$detail_mk"}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "nim", Value: 1},
			{Key: "nama", Value: 1},
			{Key: "kode_mk", Value: "$detail_mk.kode"},
			{Key: "nama_mk", Value: "$detail_mk.nama"},
			{Key: "dosen", Value: "$detail_mk.dosen"},
			{Key: "nilai", Value: "$mata_kuliah.nilai"},
		}}},
	}
}

// ClubsOfStudentPipeline resolves a student's array of club references
// into code and name pairs.
func ClubsOfStudentPipeline(nis string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "nis", Value: nis}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collKlub},
			{Key: "localField", Value: "klub"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "daftar_klub"},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "nis", Value: 1},
			{Key: "nama", Value: 1},
			{Key: "klub", Value: bson.D{{Key: "$map", Value: bson.D{
				{Key: "input", Value: "$daftar_klub"},
				{Key: "as", Value: "item"},
				{Key: "in", Value: bson.D{{Key: "kode", Value: "$$item.kode"}, {Key: "nama", Value: "$$item.nama"}}},
			}}}},
		}}},
	}
}

// MembersWithRolePipeline joins the junction collection with both sides
// and keeps the rows for one role.
func MembersWithRolePipeline(jabatan string) mongo.Pipeline {
	lookup := func(from, local, as string) bson.D {
		return bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: from},
			{Key: "localField", Value: local},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: as},
		}}}
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "jabatan", Value: jabatan}}}},
		lookup(collSiswa, "siswa_id", "detail_siswa"),
		lookup(collKlub, "klub_id", "detail_klub"),
		{{Key: "$unwind", Value: "$detail_siswa"}},
		{{Key: "$unwind", Value: "$detail_klub"}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "nama_siswa", Value: "$detail_siswa.nama"},
			{Key: "nama_klub", Value: "$detail_klub.nama"},
			{Key: "jabatan", Value: 1},
			{Key: "tanggal_gabung", Value: 1},
		}}},
	}
}

func course(kode, nama string, sks int32, nilai string) bson.D {
	return bson.D{{Key: "kode", Value: kode}, {Key: "nama", Value: nama}, {Key: "sks", Value: sks}, {Key: "nilai", Value: nilai}}
}

func runRelationships(ctx context.Context, e *Env) {
	rel := e.DB.Collection(collMahasiswaRel)

	// 1. Embedded documents.
	e.Step("Embedded: mahasiswa dengan mata kuliah dan alamat", func() error {
		return e.insertOne(ctx, collMahasiswaRel, bson.D{
			{Key: "nim", Value: "A12345"},
			{Key: "nama", Value: "Budi Santoso"},
			{Key: "jurusan", Value: "Teknik Informatika"},
			{Key: "semester", Value: int32(3)},
			{Key: "mata_kuliah", Value: bson.A{
				course("TI101", "Algoritma Pemrograman", 3, "A"),
				course("TI102", "Basis Data", 3, "B+"),
				course("TI103", "Matematika Diskrit", 2, "A-"),
			}},
			{Key: "alamat", Value: bson.D{
				{Key: "jalan", Value: "Jl. Merdeka No. 123"},
				{Key: "kota", Value: "Jakarta"},
				{Key: "kodePos", Value: "12345"},
				{Key: "provinsi", Value: "DKI Jakarta"},
			}},
		})
	})
	e.Step("Mencari berdasarkan field embedded", func() error {
		f := bson.D{{Key: "mata_kuliah.nama", Value: "Basis Data"}}
		var doc bson.D
		if err := rel.FindOne(ctx, f).Decode(&doc); err != nil {
			return err
		}
		e.Console.Linef("Mengambil Basis Data: %v", field(doc, "nama"))
		return nil
	})
	e.Step("Menambahkan mata kuliah dengan $push", func() error {
		return e.updated(rel.UpdateOne(ctx,
			bson.D{{Key: "nim", Value: "A12345"}},
			bson.D{{Key: "$push", Value: bson.D{{Key: "mata_kuliah", Value: course("TI104", "Jaringan Komputer", 3, "B")}}}}))
	})
	e.Step("Mengubah nilai dengan operator posisi $", func() error {
		return e.updated(rel.UpdateOne(ctx,
			bson.D{{Key: "nim", Value: "A12345"}, {Key: "mata_kuliah.kode", Value: "TI102"}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "mata_kuliah.$.nilai", Value: "A-"}}}}))
	})
	e.Step("Dokumen setelah perubahan", func() error {
		return e.find(ctx, collMahasiswaRel, bson.D{{Key: "nim", Value: "A12345"}}, "Mahasiswa A12345:")
	})

	// 2. References.
	mk := map[string]primitive.ObjectID{}
	e.Step("Referensi: collection mata_kuliah", func() error {
		courses := []struct {
			kode, nama, dosen string
			sks               int32
		}{
			{"TI101", "Algoritma Pemrograman", "Dr. Ahmad", 3},
			{"TI102", "Basis Data", "Prof. Budi", 3},
			{"TI103", "Matematika Diskrit", "Dr. Cindy", 2},
		}
		docs := make([]any, len(courses))
		for i, c := range courses {
			id := primitive.NewObjectID()
			mk[c.kode] = id
			docs[i] = bson.D{{Key: "_id", Value: id}, {Key: "kode", Value: c.kode}, {Key: "nama", Value: c.nama}, {Key: "sks", Value: c.sks}, {Key: "dosen", Value: c.dosen}}
		}
		return e.insertMany(ctx, collMataKuliah, docs)
	})
	e.Step("Mahasiswa dengan referensi mata kuliah", func() error {
		ref := func(kode, nilai string) bson.D {
			return bson.D{{Key: "matakuliah_id", Value: mk[kode]}, {Key: "nilai", Value: nilai}}
		}
		return e.insertOne(ctx, collMahasiswaRel, bson.D{
			{Key: "nim", Value: "A12346"},
			{Key: "nama", Value: "Dewi Anjani"},
			{Key: "jurusan", Value: "Teknik Informatika"},
			{Key: "semester", Value: int32(3)},
			{Key: "mata_kuliah", Value: bson.A{ref("TI101", "A"), ref("TI102", "B+")}},
		})
	})
	e.Step("$lookup: join mahasiswa dengan mata_kuliah", func() error {
		return e.aggregate(ctx, collMahasiswaRel, CourseJoinPipeline("A12346"), "Hasil:")
	})

	// 3. Many-to-many with arrays of references.
	siswa := map[string]primitive.ObjectID{}
	klub := map[string]primitive.ObjectID{}
	e.Step("Many-to-many: siswa dan klub", func() error {
		var sDocs, kDocs []any
		for _, s := range [][2]string{{"S001", "Amir"}, {"S002", "Bela"}, {"S003", "Candra"}} {
			id := primitive.NewObjectID()
			siswa[s[0]] = id
			sDocs = append(sDocs, bson.D{{Key: "_id", Value: id}, {Key: "nis", Value: s[0]}, {Key: "nama", Value: s[1]}})
		}
		for _, k := range [][2]string{{"K001", "Klub Sepak Bola"}, {"K002", "Klub Musik"}, {"K003", "Klub Komputer"}} {
			id := primitive.NewObjectID()
			klub[k[0]] = id
			kDocs = append(kDocs, bson.D{{Key: "_id", Value: id}, {Key: "kode", Value: k[0]}, {Key: "nama", Value: k[1]}})
		}
		if err := e.insertMany(ctx, collSiswa, sDocs); err != nil {
			return err
		}
		return e.insertMany(ctx, collKlub, kDocs)
	})
	e.Step("Menghubungkan siswa dan klub", func() error {
		push := func(coll, keyField, key, arrField string, ref primitive.ObjectID) error {
			_, err := e.DB.Collection(coll).UpdateOne(ctx,
				bson.D{{Key: keyField, Value: key}},
				bson.D{{Key: "$push", Value: bson.D{{Key: arrField, Value: ref}}}})
			if err != nil {
				return fmt.Errorf("%s %s: %w", coll, key, err)
			}
			return nil
		}
		links := []struct{ nis, kode string }{{"S001", "K001"}, {"S002", "K001"}, {"S002", "K002"}, {"S001", "K003"}}
		for _, l := range links {
			if err := push(collKlub, "kode", l.kode, "anggota", siswa[l.nis]); err != nil {
				return err
			}
			if err := push(collSiswa, "nis", l.nis, "klub", klub[l.kode]); err != nil {
				return err
			}
		}
		e.Console.Linef("%d relasi ditambahkan di kedua sisi", len(links))
		return nil
	})
	e.Step("Klub yang diikuti siswa S001", func() error {
		return e.aggregate(ctx, collSiswa, ClubsOfStudentPipeline("S001"), "Hasil:")
	})

	// 4. Junction collection.
	e.Step("Junction collection siswa_klub", func() error {
		row := func(nis, kode string, joined time.Time, jabatan string) bson.D {
			return bson.D{
				{Key: "siswa_id", Value: siswa[nis]},
				{Key: "klub_id", Value: klub[kode]},
				{Key: "tanggal_gabung", Value: joined},
				{Key: "jabatan", Value: jabatan},
			}
		}
		day := func(m time.Month, d int) time.Time { return time.Date(2023, m, d, 0, 0, 0, 0, time.UTC) }
		return e.insertMany(ctx, collSiswaKlub, []any{
			row("S001", "K001", day(time.January, 15), "Anggota"),
			row("S002", "K001", day(time.January, 20), "Ketua"),
			row("S002", "K002", day(time.February, 5), "Anggota"),
		})
	})
	e.Step("Double $lookup: para ketua klub", func() error {
		return e.aggregate(ctx, collSiswaKlub, MembersWithRolePipeline("Ketua"), "Hasil:")
	})
}
