package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/QQCPM/ChatChat/internal/models"
)

func TestComputeStats(t *testing.T) {
	paired := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		{AuthorID: "alice", Body: models.TextBody{Text: "hi"}},
		{AuthorID: "bob", Body: models.ParseBody("data:image/png;base64,AAAA")},
		{AuthorID: "bob", Body: models.ParseBody(`{"type":"video","name":"v.mp4","data":"x","size":3}`)},
		{AuthorID: "alice", Body: models.ParseBody(`{"type":"pdf","name":"a.pdf","data":"x","size":3}`)},
		{AuthorID: "alice", Body: models.ParseBody("https://example.com/cat.jpg")},
	}

	st := ComputeStats(msgs, "alice", paired, paired.Add(36*time.Hour))
	assert.Equal(t, Stats{
		DaysTogether:     2,
		TotalMessages:    5,
		PhotosShared:     2,
		VideosShared:     1,
		PDFsShared:       1,
		MessagesFromYou:  3,
		MessagesFromThem: 2,
	}, st)
}

func TestComputeStatsFirstDay(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 1, ComputeStats(nil, "alice", now, now).DaysTogether)
	assert.Equal(t, 1, ComputeStats(nil, "alice", now, now.Add(time.Hour)).DaysTogether)
}
