package lessons

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/*.yaml
var fixtures embed.FS

// Nilai holds a student's scores.
type Nilai struct {
	Matematika  int `bson:"matematika" yaml:"matematika"`
	Pemrograman int `bson:"pemrograman" yaml:"pemrograman"`
	Database    int `bson:"database" yaml:"database"`
}

// Mahasiswa is a student in the basic lesson.
type Mahasiswa struct {
	Nama    string `bson:"nama" yaml:"nama"`
	NIM     string `bson:"nim" yaml:"nim"`
	Jurusan string `bson:"jurusan" yaml:"jurusan"`
	Nilai   Nilai  `bson:"nilai" yaml:"nilai"`
	Status  string `bson:"status" yaml:"status"`
}

func loadMahasiswa() ([]Mahasiswa, error) {
	b, err := fixtures.ReadFile("fixtures/mahasiswa.yaml")
	if err != nil {
		return nil, err
	}
	var f struct {
		Mahasiswa []Mahasiswa `yaml:"mahasiswa"`
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("mahasiswa fixture: %w", err)
	}
	if len(f.Mahasiswa) < 2 {
		return nil, fmt.Errorf("mahasiswa fixture: need at least 2 students, got %d", len(f.Mahasiswa))
	}
	return f.Mahasiswa, nil
}
