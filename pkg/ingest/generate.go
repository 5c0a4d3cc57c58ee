package ingest

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"

	"github.com/Zerofisher/megatable/pkg/model"
)

var (
	firstNames  = []string{"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi", "Ivan", "Judy", "Mallory", "Niaj", "Olivia", "Peggy", "Rupert", "Sybil", "Trent", "Victor", "Walter", "Yara"}
	lastNames   = []string{"Smith", "Johnson", "Lee", "Garcia", "Brown", "Miller", "Davis", "Martinez", "Lopez", "Wilson", "Anderson", "Thomas", "Moore", "Jackson", "Martin"}
	roles       = []string{"Engineer", "Designer", "Manager", "Analyst", "Director", "Intern", "Architect", "Consultant"}
	departments = []string{"Engineering", "Sales", "Marketing", "Finance", "Support", "Operations", "Legal", "HR"}
	statuses    = []string{"active", "inactive", "pending", "on_leave"}
	locations   = []string{"New York", "London", "Berlin", "Tokyo", "Sydney", "Toronto", "Paris", "Singapore", "Austin", "Remote"}
	domains     = []string{"example.com", "mail.test", "corp.example", "acme.test"}
)

// Generator produces synthetic records with ULID ids. Ids are strictly
// increasing in generation order, so a generated dataset is already sorted
// by cursor.
type Generator struct {
	rng *rand.Rand

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewGenerator creates a Generator. The same seed yields the same field values.
func NewGenerator(seed uint64) *Generator {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Generator{
		rng:     rng,
		entropy: ulid.Monotonic(rngReader{rng}, 0),
		now:     time.Now,
	}
}

// Next returns the next record.
func (g *Generator) Next() (model.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return model.Record{}, fmt.Errorf("new ulid: %w", err)
	}

	first := pick(g.rng, firstNames)
	last := pick(g.rng, lastNames)
	role := pick(g.rng, roles)
	dept := pick(g.rng, departments)
	loc := pick(g.rng, locations)

	return model.Record{
		ID:         id.String(),
		Name:       first + " " + last,
		Email:      fmt.Sprintf("%s.%s%d@%s", strings.ToLower(first), strings.ToLower(last), g.rng.IntN(10000), pick(g.rng, domains)),
		Role:       role,
		Department: dept,
		Status:     pick(g.rng, statuses),
		Location:   loc,
		Salary:     model.Int64(40000 + int64(g.rng.IntN(160))*1000),
		Bio:        model.String(fmt.Sprintf("%s works as a %s in %s, based in %s.", first, strings.ToLower(role), dept, loc)),
	}, nil
}

// Generate returns n records.
func (g *Generator) Generate(n int) ([]model.Record, error) {
	out := make([]model.Record, 0, n)
	for range n {
		r, err := g.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// WriteRecords streams n records to w as a JSON array, or as NDJSON when ndjson
// is set, without holding the dataset in memory.
func (g *Generator) WriteRecords(w io.Writer, n int, ndjson bool) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	enc := json.NewEncoder(bw)

	if !ndjson {
		if _, err := bw.WriteString("["); err != nil {
			return err
		}
	}
	for i := range n {
		r, err := g.Next()
		if err != nil {
			return err
		}
		if !ndjson && i > 0 {
			if _, err := bw.WriteString(","); err != nil {
				return err
			}
		}
		// Encode appends a newline, which keeps NDJSON framing and is
		// harmless whitespace inside the array.
		if err := enc.Encode(&r); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	if !ndjson {
		if _, err := bw.WriteString("]\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func pick(rng *rand.Rand, xs []string) string {
	return xs[rng.IntN(len(xs))]
}

// rngReader adapts a seeded PRNG to io.Reader for ULID entropy.
type rngReader struct{ rng *rand.Rand }

func (r rngReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.rng.Uint32())
	}
	return len(p), nil
}
