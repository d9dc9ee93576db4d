package ranking

import (
	"math"
	"testing"

	"github.com/hyperjump/cursobot/internal/keyword"
)

func TestFitVectorizer(t *testing.T) {
	an, err := keyword.NewAnalyzer()
	if err != nil {
		t.Fatal(err)
	}
	docs := []string{"Programación en Python", "Python para datos", "Excel básico"}
	v := FitVectorizer(an, docs, 0)

	if ok, _ := v.ContainsTerm("python"); !ok {
		t.Error("python should be in the vocabulary")
	}
	if ok, _ := v.ContainsTerm("en"); ok {
		t.Error("stop words must not enter the vocabulary")
	}
	if df, _ := v.GetTermFrequency("python"); df != 2 {
		t.Errorf("df(python) = %d, want 2", df)
	}

	// smooth idf: ln((1+n)/(1+df)) + 1
	wantIDF := math.Log(4.0/3.0) + 1
	if got := v.idf[v.vocab["python"]]; math.Abs(got-wantIDF) > 1e-12 {
		t.Errorf("idf(python) = %v, want %v", got, wantIDF)
	}

	scores, ok := v.Similarities(an.Tokens("excel"))
	if !ok {
		t.Fatal("expected a vocabulary hit")
	}
	if scores[0] != 0 || scores[1] != 0 {
		t.Errorf("unrelated rows should score 0: %v", scores)
	}
	if scores[2] <= 0 || scores[2] > 1 {
		t.Errorf("matching row out of range: %v", scores[2])
	}

	if _, ok := v.Similarities(an.Tokens("robótica")); ok {
		t.Error("unknown terms should not hit")
	}
}

func TestFitVectorizer_maxFeatures(t *testing.T) {
	an, err := keyword.NewAnalyzer()
	if err != nil {
		t.Fatal(err)
	}
	docs := []string{"python python datos", "python excel", "redes"}
	v := FitVectorizer(an, docs, 2)
	terms, _ := v.GetAllTerms()
	if len(terms) != 2 {
		t.Fatalf("vocabulary size = %d, want 2", len(terms))
	}
	// python (3) is kept; datos, excel and redes tie at 1 and datos wins alphabetically.
	if terms[0] != "datos" || terms[1] != "python" {
		t.Errorf("terms = %v", terms)
	}
}
