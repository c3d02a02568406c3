package service

import (
	"testing"
	"time"

	"cards/internal/models"
)

func TestAssignChapters(t *testing.T) {
	cards := make([]models.Card, 10)
	for i := range cards {
		cards[i].ID = int64(i + 1)
	}

	got := AssignChapters(cards, 8)
	for i, a := range got {
		wantChapter := 1
		if i >= 8 {
			wantChapter = 2
		}
		if a.Position != i || a.Chapter != wantChapter {
			t.Errorf("card %d: position %d chapter %d, want %d and %d", i, a.Position, a.Chapter, i, wantChapter)
		}
		if a.Card.ID != cards[i].ID {
			t.Errorf("card %d: got card ID %d", i, a.Card.ID)
		}
	}

	again := AssignChapters(cards, 8)
	for i := range got {
		if got[i].Chapter != again[i].Chapter || got[i].Position != again[i].Position {
			t.Fatalf("assignment for card %d is not deterministic", i)
		}
	}
}

func TestAssignChaptersDefaultSize(t *testing.T) {
	cards := make([]models.Card, 9)
	got := AssignChapters(cards, 0)
	if got[7].Chapter != 1 || got[8].Chapter != 2 {
		t.Errorf("size 0 should fall back to %d per chapter", DefaultChapterSize)
	}
}

func TestChapterCount(t *testing.T) {
	tests := []struct {
		n, size, want int
	}{
		{n: 0, size: 8, want: 0},
		{n: 1, size: 8, want: 1},
		{n: 8, size: 8, want: 1},
		{n: 10, size: 8, want: 2},
		{n: 16, size: 8, want: 2},
		{n: 10, size: 3, want: 4},
		{n: 10, size: -1, want: 2},
	}
	for _, tt := range tests {
		if got := ChapterCount(tt.n, tt.size); got != tt.want {
			t.Errorf("ChapterCount(%d, %d) = %d, want %d", tt.n, tt.size, got, tt.want)
		}
	}
}

func TestClampChapter(t *testing.T) {
	tests := []struct {
		name           string
		chapter, count int
		want           int
	}{
		{name: "in range", chapter: 2, count: 3, want: 2},
		{name: "below", chapter: 0, count: 3, want: 1},
		{name: "above", chapter: 9, count: 3, want: 3},
		{name: "empty deck", chapter: 4, count: 0, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampChapter(tt.chapter, tt.count); got != tt.want {
				t.Errorf("ClampChapter() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestChapterSummaries(t *testing.T) {
	reviewed := time.Now()
	items := []models.StudyItem{
		{ChapterNumber: 2},
		{ChapterNumber: 1, ReviewedAt: &reviewed},
		{ChapterNumber: 1},
		{ChapterNumber: 2, ReviewedAt: &reviewed},
		{ChapterNumber: 2, ReviewedAt: &reviewed},
	}

	got := ChapterSummaries(items)
	want := []models.ChapterSummary{
		{ChapterNumber: 1, TotalCards: 2, ReviewedCards: 1, RemainingCards: 1},
		{ChapterNumber: 2, TotalCards: 3, ReviewedCards: 2, RemainingCards: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d summaries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("summary %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if len(ChapterSummaries(nil)) != 0 {
		t.Error("no items should give no summaries")
	}
}

func TestNextUnreviewed(t *testing.T) {
	reviewed := time.Now()
	items := []models.StudyItem{
		{ID: 1, ChapterNumber: 1, ReviewedAt: &reviewed},
		{ID: 2, ChapterNumber: 1},
		{ID: 3, ChapterNumber: 2},
	}

	if got := NextUnreviewed(items, nil); got == nil || got.ID != 2 {
		t.Errorf("NextUnreviewed(nil) = %+v, want item 2", got)
	}
	if got := NextUnreviewed(items, intRef(2)); got == nil || got.ID != 3 {
		t.Errorf("NextUnreviewed(2) = %+v, want item 3", got)
	}
	items[1].ReviewedAt = &reviewed
	if got := NextUnreviewed(items, intRef(1)); got != nil {
		t.Errorf("NextUnreviewed(1) = %+v, want nil", got)
	}
}
