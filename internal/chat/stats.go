package chat

import (
	"math"
	"time"

	"github.com/QQCPM/ChatChat/internal/models"
)

// Stats summarizes a couple's room.
type Stats struct {
	DaysTogether     int `json:"days_together"`
	TotalMessages    int `json:"total_messages"`
	PhotosShared     int `json:"photos_shared"`
	VideosShared     int `json:"videos_shared"`
	PDFsShared       int `json:"pdfs_shared"`
	MessagesFromYou  int `json:"messages_from_you"`
	MessagesFromThem int `json:"messages_from_them"`
}

// ComputeStats counts msgs from viewerID's point of view. DaysTogether
// starts at 1 on the pairing day.
func ComputeStats(msgs []models.Message, viewerID string, pairedAt, now time.Time) Stats {
	days := int(math.Ceil(now.Sub(pairedAt).Hours() / 24))
	st := Stats{
		DaysTogether:  max(1, days),
		TotalMessages: len(msgs),
	}
	for _, m := range msgs {
		if m.AuthorID == viewerID {
			st.MessagesFromYou++
		} else {
			st.MessagesFromThem++
		}
		switch b := m.Body.(type) {
		case models.ImageBody:
			st.PhotosShared++
		case models.FileBody:
			switch b.Type {
			case models.FileVideo:
				st.VideosShared++
			case models.FilePDF:
				st.PDFsShared++
			}
		}
	}
	return st
}
