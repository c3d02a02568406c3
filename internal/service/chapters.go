package service

import (
	"sort"

	"cards/internal/models"
)

// DefaultChapterSize is used when a caller passes a size below 1
const DefaultChapterSize = 8

// ChapterAssignment places a card in the deck's stable ordering
type ChapterAssignment struct {
	Card     models.Card
	Position int
	Chapter  int
}

func normalizeChapterSize(size int) int {
	if size < 1 {
		return DefaultChapterSize
	}
	return size
}

// AssignChapters partitions cards, already in stable order, into chapters of size cards.
// The card at index i lands in chapter i/size + 1 at position i.
func AssignChapters(cards []models.Card, size int) []ChapterAssignment {
	size = normalizeChapterSize(size)
	out := make([]ChapterAssignment, len(cards))
	for i, card := range cards {
		out[i] = ChapterAssignment{
			Card:     card,
			Position: i,
			Chapter:  i/size + 1,
		}
	}
	return out
}

// ChapterCount returns how many chapters n cards fill
func ChapterCount(n, size int) int {
	if n <= 0 {
		return 0
	}
	size = normalizeChapterSize(size)
	return (n + size - 1) / size
}

// ClampChapter keeps a requested chapter inside [1, count]
func ClampChapter(chapter, count int) int {
	if count < 1 {
		return 1
	}
	if chapter < 1 {
		return 1
	}
	if chapter > count {
		return count
	}
	return chapter
}

// ChapterSummaries groups items by chapter in ascending chapter order
func ChapterSummaries(items []models.StudyItem) []models.ChapterSummary {
	byChapter := make(map[int]*models.ChapterSummary)
	for _, item := range items {
		summary, ok := byChapter[item.ChapterNumber]
		if !ok {
			summary = &models.ChapterSummary{ChapterNumber: item.ChapterNumber}
			byChapter[item.ChapterNumber] = summary
		}
		summary.TotalCards++
		if item.IsReviewed() {
			summary.ReviewedCards++
		}
	}

	summaries := make([]models.ChapterSummary, 0, len(byChapter))
	for _, summary := range byChapter {
		summary.RemainingCards = summary.TotalCards - summary.ReviewedCards
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ChapterNumber < summaries[j].ChapterNumber
	})
	return summaries
}

// NextUnreviewed returns the first unreviewed item, limited to chapter when it is non-nil
func NextUnreviewed(items []models.StudyItem, chapter *int) *models.StudyItem {
	for i := range items {
		if chapter != nil && items[i].ChapterNumber != *chapter {
			continue
		}
		if !items[i].IsReviewed() {
			return &items[i]
		}
	}
	return nil
}
