package lessons

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/dalemusser/mongocrud/logging"
	"github.com/dalemusser/mongocrud/metrics"
	"github.com/dalemusser/mongocrud/pantry/text"
	"github.com/dalemusser/mongocrud/toolkit/db/mongodb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr error
	}{
		{"no names", nil, nil, ErrNoLessons},
		{"all", []string{"all"}, Names(), nil},
		{"keeps order", []string{"indexing", "basic"}, []string{"indexing", "basic"}, nil},
		{"drops repeats", []string{"basic", "BASIC", " basic "}, []string{"basic"}, nil},
		{"all after one", []string{"validation", "all"}, []string{"validation", "basic", "aggregation", "indexing", "relationships"}, nil},
		{"unknown", []string{"basic", "sharding"}, nil, ErrUnknownLesson},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls, err := Resolve(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.in, err)
			}
			var got []string
			for _, l := range ls {
				got = append(got, l.Name)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	want := []string{"basic", "aggregation", "indexing", "relationships", "validation"}
	if got := Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %q, want %q", got, want)
	}

	owner := map[string]string{}
	for _, l := range All() {
		if l.Title == "" || l.run == nil {
			t.Errorf("lesson %s is missing a title or steps", l.Name)
		}
		if len(l.Collections) == 0 {
			t.Errorf("lesson %s owns no collections", l.Name)
		}
		for _, c := range l.Collections {
			if prev, ok := owner[c]; ok {
				t.Errorf("collection %s belongs to both %s and %s", c, prev, l.Name)
			}
			owner[c] = l.Name
		}
	}
}

func newTestEnv(rec *metrics.Recorder) (*Env, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &Env{
		Console: logging.NewConsole(&out, &errOut),
		Metrics: rec,
		lesson:  "basic",
	}, &out, &errOut
}

func TestStepSwallowsFailures(t *testing.T) {
	rec := metrics.NewRecorder(nil)
	e, out, errOut := newTestEnv(rec)

	ran := 0
	e.Step("Pertama", func() error { ran++; return errors.New("boom") })
	e.Step("Kedua", func() error { ran++; return nil })

	if ran != 2 {
		t.Errorf("ran %d steps, want 2", ran)
	}
	if e.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", e.Failed())
	}
	if got, want := out.String(), "--- Pertama ---\n\n--- Kedua ---\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if got, want := errOut.String(), "Langkah gagal: boom\n"; got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}

	want := `
# HELP mongocrud_operations_total Database operations by name and outcome.
# TYPE mongocrud_operations_total counter
mongocrud_operations_total{operation="lesson_basic",outcome="error"} 1
mongocrud_operations_total{operation="lesson_basic",outcome="ok"} 1
`
	if err := testutil.GatherAndCompare(rec.Registry(), strings.NewReader(want), "mongocrud_operations_total"); err != nil {
		t.Error(err)
	}
}

func TestStepWithoutMetrics(t *testing.T) {
	e, _, _ := newTestEnv(nil)
	e.Step("Tanpa metrik", func() error { return nil })
	if e.Failed() != 0 {
		t.Errorf("Failed() = %d, want 0", e.Failed())
	}
}

func TestRunStopsOnConnectFailure(t *testing.T) {
	var out, errOut bytes.Buffer
	opens := 0
	r := &Runner{
		Open: func(context.Context) (*mongodb.Session, error) {
			opens++
			return nil, errors.New("connection refused")
		},
		Console: logging.NewConsole(&out, &errOut),
	}

	err := r.Run(context.Background(), All())
	if !errors.Is(err, mongodb.ErrConnect) {
		t.Fatalf("Run() error = %v, want wrapped ErrConnect", err)
	}
	if opens != 1 {
		t.Errorf("opened %d times, want 1", opens)
	}
	if !strings.Contains(out.String(), "========== OPERASI DASAR MONGODB ==========") {
		t.Errorf("stdout = %q, want the first banner", out.String())
	}
	if strings.Contains(out.String(), "Terhubung dengan MongoDB") {
		t.Errorf("stdout = %q, should not report a connection", out.String())
	}
	if !strings.HasPrefix(errOut.String(), "Gagal terhubung ke MongoDB: ") {
		t.Errorf("stderr = %q, want connect failure", errOut.String())
	}
}

func TestSummarizeExplain(t *testing.T) {
	classic := bson.M{
		"queryPlanner": bson.M{
			"winningPlan": bson.M{
				"stage": "PROJECTION_COVERED",
				"inputStage": bson.M{
					"stage":     "IXSCAN",
					"indexName": "category_1_price_-1",
				},
			},
		},
		"executionStats": bson.M{
			"nReturned":         int32(3),
			"totalKeysExamined": int32(3),
			"totalDocsExamined": int32(0),
		},
	}
	p := SummarizeExplain(classic)
	if got, want := p.String(), "PROJECTION_COVERED <- IXSCAN"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if p.IndexName != "category_1_price_-1" {
		t.Errorf("IndexName = %q, want category_1_price_-1", p.IndexName)
	}
	if !p.Covered() || p.CollScan() {
		t.Errorf("Covered() = %v, CollScan() = %v, want true, false", p.Covered(), p.CollScan())
	}

	sbe := bson.M{
		"queryPlanner": bson.M{
			"winningPlan": bson.M{
				"queryPlan": bson.D{
					{Key: "stage", Value: "SORT"},
					{Key: "inputStages", Value: bson.A{
						bson.M{"stage": "COLLSCAN"},
					}},
				},
			},
		},
		"executionStats": bson.M{
			"nReturned":         int64(10),
			"totalKeysExamined": int64(0),
			"totalDocsExamined": int64(10),
		},
	}
	p = SummarizeExplain(sbe)
	if !slices.Equal(p.Stages, []string{"SORT", "COLLSCAN"}) {
		t.Errorf("Stages = %q, want [SORT COLLSCAN]", p.Stages)
	}
	if p.Covered() || !p.CollScan() {
		t.Errorf("Covered() = %v, CollScan() = %v, want false, true", p.Covered(), p.CollScan())
	}
	if p.DocsExamined != 10 {
		t.Errorf("DocsExamined = %d, want 10", p.DocsExamined)
	}

	if empty := SummarizeExplain(bson.M{}); len(empty.Stages) != 0 || empty.Covered() {
		t.Errorf("SummarizeExplain({}) = %+v, want zero summary", empty)
	}
}

func stageNames(p mongo.Pipeline) []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s[0].Key
	}
	return out
}

func TestPipelineShapes(t *testing.T) {
	tests := []struct {
		name string
		p    mongo.Pipeline
		want []string
	}{
		{"avg matematika", AvgMatematikaPipeline(), []string{"$group"}},
		{"per jurusan", PerJurusanPipeline(), []string{"$group", "$sort"}},
		{"per city", TotalPerCityPipeline(), []string{"$group", "$sort"}},
		{"top products", TopProductsPipeline(3), []string{"$unwind", "$group", "$sort", "$limit"}},
		{"facet", FacetPipeline(), []string{"$facet"}},
		{"bucket", BucketPipeline(), []string{"$bucket"}},
		{"profit", ProfitPipeline(0.2), []string{"$addFields", "$project"}},
		{"course join", CourseJoinPipeline("A12345"), []string{"$match", "$unwind", "$lookup", "$unwind", "$project"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stageNames(tt.p); !slices.Equal(got, tt.want) {
				t.Errorf("stages = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutputStagesComeLast(t *testing.T) {
	base := len(MonthlyPipeline())

	out := MonthlyOutPipeline("laporan_bulanan")
	if len(out) != base+1 || out[base][0].Key != "$out" || out[base][0].Value != "laporan_bulanan" {
		t.Errorf("MonthlyOutPipeline last stage = %v, want $out laporan_bulanan", out[len(out)-1])
	}

	merge := MonthlyMergePipeline("laporan_bulanan")
	if len(merge) != base+1 || merge[base][0].Key != "$merge" {
		t.Errorf("MonthlyMergePipeline last stage = %v, want $merge", merge[len(merge)-1])
	}

	// building one must not leak a stage into the other
	if len(MonthlyPipeline()) != base {
		t.Errorf("MonthlyPipeline grew to %d stages", len(MonthlyPipeline()))
	}
}

func TestBucketBoundaries(t *testing.T) {
	if !slices.IsSorted(BucketBoundaries) {
		t.Errorf("BucketBoundaries = %v, want ascending", BucketBoundaries)
	}
	_, sales := SalesFixture()
	upper := BucketBoundaries[len(BucketBoundaries)-1]
	above := 0
	for _, s := range sales {
		if s.Total >= upper {
			above++
		}
	}
	// Deni's two laptops land in the default bucket.
	if above != 1 {
		t.Errorf("%d sales at or above %d, want 1", above, upper)
	}
}

func TestSalesFixture(t *testing.T) {
	products, sales := SalesFixture()
	if len(products) != 5 || len(sales) != 8 {
		t.Fatalf("SalesFixture() = %d products, %d sales, want 5, 8", len(products), len(sales))
	}
	if got, want := sales[0].Total, int64(8_650_000); got != want {
		t.Errorf("first sale total = %d, want %d", got, want)
	}
	for i, s := range sales {
		var sum int64
		for _, it := range s.Items {
			sum += it.Harga * int64(it.Jumlah)
		}
		if sum != s.Total {
			t.Errorf("sale %d total = %d, want %d", i, s.Total, sum)
		}
	}
}

func TestCatalogFixture(t *testing.T) {
	items := CatalogFixture()
	outOfStock := 0
	for _, it := range items {
		if it.NameCI != text.Fold(it.Name) {
			t.Errorf("%s: NameCI = %q, want %q", it.Name, it.NameCI, text.Fold(it.Name))
		}
		if it.Quantity == 0 {
			outOfStock++
		}
	}
	if outOfStock == 0 {
		t.Error("fixture needs an out-of-stock product for the partial index")
	}
	if len(items) <= pageSize {
		t.Errorf("fixture has %d items, want more than one page of %d", len(items), pageSize)
	}
}

func TestIndexPlanCoversLessonCollections(t *testing.T) {
	plan := IndexPlan()
	for coll, models := range plan {
		if !slices.Contains(indexingLesson.Collections, coll) {
			t.Errorf("IndexPlan has %s, which the indexing lesson does not own", coll)
		}
		if len(models) == 0 {
			t.Errorf("IndexPlan[%s] is empty", coll)
		}
	}
	sessions := plan[collSessions]
	if len(sessions) != 1 || sessions[0].Options == nil || sessions[0].Options.ExpireAfterSeconds == nil || *sessions[0].Options.ExpireAfterSeconds != 3600 {
		t.Errorf("sessions index = %+v, want a one-hour TTL", sessions)
	}
}

func TestFindCommand(t *testing.T) {
	cmd := FindCommand("idx_products", bson.D{}, nil, bson.D{{Key: "price", Value: 1}}, nil)
	var keys []string
	for _, e := range cmd {
		keys = append(keys, e.Key)
	}
	if want := []string{"find", "filter", "sort"}; !slices.Equal(keys, want) {
		t.Errorf("FindCommand keys = %q, want %q", keys, want)
	}
}

func TestLoadMahasiswa(t *testing.T) {
	ms, err := loadMahasiswa()
	if err != nil {
		t.Fatalf("loadMahasiswa() error = %v", err)
	}
	if ms[0].Nama != "Budi Santoso" || ms[0].NIM != "A12345" {
		t.Errorf("first student = %+v, want Budi Santoso A12345", ms[0])
	}
	nims := map[string]bool{}
	for _, m := range ms {
		if nims[m.NIM] {
			t.Errorf("duplicate nim %s", m.NIM)
		}
		nims[m.NIM] = true
	}
}

func required(schema bson.D) bson.A {
	js := field(schema, "$jsonSchema").(bson.D)
	return field(js, "required").(bson.A)
}

func TestProdukSchema(t *testing.T) {
	if slices.Contains(required(ProdukSchema(false)), any("kategori")) {
		t.Error("lenient schema should not require kategori")
	}
	if !slices.Contains(required(ProdukSchema(true)), any("kategori")) {
		t.Error("strict schema should require kategori")
	}

	cmd := CollModCommand(collProduk, ProdukSchema(true))
	if cmd[0].Key != "collMod" || field(cmd, "validationLevel") != "strict" || field(cmd, "validationAction") != "error" {
		t.Errorf("CollModCommand = %v, want strict collMod with action error", cmd)
	}
}

func TestPesananSchema(t *testing.T) {
	want := bson.A{"kode", "pelanggan", "tanggal", "items"}
	if got := required(PesananSchema()); !slices.Equal(got, want) {
		t.Errorf("required = %v, want %v", got, want)
	}
}
