// Package catalog holds the course offerings and their row-aligned embeddings.
//
// A Catalog is immutable once built. Reloading produces a new Catalog that is
// swapped in atomically by a Provider; readers keep whatever snapshot they
// obtained for the duration of a request.
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/internal/vector"
)

var (
	// ErrUnavailable is returned when no catalog snapshot has been loaded.
	ErrUnavailable = errors.New("catalog unavailable")
	// ErrMisaligned is returned when the course table and the embedding matrix differ in rows.
	ErrMisaligned = errors.New("catalog rows and embedding rows differ")
)

// Catalog is an immutable snapshot of the course table and its embeddings.
type Catalog struct {
	courses    []models.Course
	embeddings *vector.Matrix
	version    string
	loadedAt   time.Time
}

// New builds a catalog. Row i of embeddings must describe courses[i].
func New(courses []models.Course, embeddings *vector.Matrix) (*Catalog, error) {
	if embeddings == nil {
		return nil, errors.New("embeddings are required")
	}
	if len(courses) != embeddings.Len() {
		return nil, fmt.Errorf("%w: %d courses, %d embeddings", ErrMisaligned, len(courses), embeddings.Len())
	}
	c := &Catalog{
		courses:    make([]models.Course, len(courses)),
		embeddings: embeddings,
		loadedAt:   time.Now(),
	}
	copy(c.courses, courses)
	return c, nil
}

func (c *Catalog) withVersion(v string) *Catalog {
	c.version = v
	return c
}

// Len returns the number of offerings.
func (c *Catalog) Len() int {
	return len(c.courses)
}

// Course returns a copy of the offering at row i.
func (c *Catalog) Course(i int) models.Course {
	return c.courses[i]
}

// Embeddings returns the embedding matrix.
func (c *Catalog) Embeddings() *vector.Matrix {
	return c.embeddings
}

// Version identifies the artifact contents the snapshot was built from.
func (c *Catalog) Version() string {
	return c.version
}

// LoadedAt is when the snapshot was built.
func (c *Catalog) LoadedAt() time.Time {
	return c.loadedAt
}

// Names returns the offering names in row order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.courses))
	for i := range c.courses {
		out[i] = c.courses[i].Name
	}
	return out
}

// Contexts returns name, description and department joined per row.
func (c *Catalog) Contexts() []string {
	out := make([]string, len(c.courses))
	for i := range c.courses {
		co := &c.courses[i]
		out[i] = co.Name + " " + co.Description + " " + co.Department
	}
	return out
}
