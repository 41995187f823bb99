package service

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// RoomLink имя видеокомнаты: детерминированный хэш бронирования + случайный суффикс
func RoomLink(bookingID, teacherID, studentID int64, start time.Time) (string, error) {
	sum := md5.Sum([]byte(fmt.Sprintf("%d|%d|%d|%d", bookingID, teacherID, studentID, start.Unix())))

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate room suffix: %w", err)
	}

	return fmt.Sprintf("onlycation-%dx%d-%s-%s",
		teacherID, studentID, hex.EncodeToString(sum[:])[:8], hex.EncodeToString(suffix)), nil
}
