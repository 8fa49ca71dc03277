package score

import (
	"reflect"
	"testing"
)

func TestOptional(t *testing.T) {
	if None().Valid {
		t.Error("None must be invalid")
	}
	if got := None().Or(0.7); got != 0.7 {
		t.Errorf("None().Or = %f", got)
	}
	if got := Some(0).Or(0.7); got != 0 {
		t.Errorf("Some(0).Or must return the present zero, got %f", got)
	}
}

func TestCandidate_Methods(t *testing.T) {
	c := Candidate{DocumentID: "a", Lexical: Some(3), Vector: Some(0.5)}
	want := []Method{Vector, Keyword}
	if got := c.Methods(); !reflect.DeepEqual(got, want) {
		t.Errorf("Methods() = %v, want %v", got, want)
	}
}

func TestSortFused(t *testing.T) {
	results := []Fused{
		{DocumentID: "c", FinalScore: 0.5, Methods: []Method{Text}},
		{DocumentID: "b", FinalScore: 0.5, Methods: []Method{Text, Keyword}},
		{DocumentID: "a", FinalScore: 0.5, Methods: []Method{Text}},
		{DocumentID: "z", FinalScore: 0.9, Methods: []Method{Vector}},
	}
	SortFused(results)

	var ids []string
	for _, r := range results {
		ids = append(ids, r.DocumentID)
	}
	want := []string{"z", "b", "a", "c"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}

func TestSortHits(t *testing.T) {
	hits := []Hit{{"b", 1}, {"a", 1}, {"c", 2}}
	SortHits(hits)
	if hits[0].DocumentID != "c" || hits[1].DocumentID != "a" || hits[2].DocumentID != "b" {
		t.Errorf("unexpected order: %v", hits)
	}
}

func TestRound2(t *testing.T) {
	tests := map[float64]float64{0.854: 0.85, 0.856: 0.86, 1: 1, 0.004: 0}
	for in, want := range tests {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}
