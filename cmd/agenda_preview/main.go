package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Freeeeeet/onlycation/internal/clock"
	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/render"
)

// Рисует тестовую недельную агенду в PNG без базы данных
func main() {
	out := flag.String("out", "agenda.png", "output file")
	offset := flag.Int("tz", -6, "business timezone offset, hours")
	flag.Parse()

	loc := clock.BusinessZone(*offset)
	weekStart := clock.StartOfWeek(time.Now(), loc)

	// день недели → окно [from, to) и занятые часы
	windows := map[int][2]int{
		1: {8, 14},
		2: {10, 18},
		3: {9, 12},
		5: {11, 20},
	}
	occupied := map[int][]int{
		1: {9, 10},
		3: {9},
		5: {13, 17},
	}

	agenda := &model.WeeklyAgenda{TeacherID: 1, WeekStart: weekStart}
	var bookingID int64
	for i := 0; i < 7; i++ {
		date := weekStart.AddDate(0, 0, i)
		day := model.AgendaDay{Date: date, DayOfWeek: i + 1}

		busy := make(map[int]bool)
		for _, h := range occupied[i+1] {
			busy[h] = true
		}

		if w, ok := windows[i+1]; ok {
			availabilityID := int64(i + 1)
			for h := w[0]; h < w[1]; h++ {
				slot := model.AgendaSlot{Hour: fmt.Sprintf("%02d:00", h), Status: model.SlotAvailable, AvailabilityID: &availabilityID}
				if busy[h] {
					bookingID++
					id := bookingID
					slot.Status = model.SlotOccupied
					slot.BookingID = &id
				}
				day.Slots = append(day.Slots, slot)
			}
		}
		agenda.Days = append(agenda.Days, day)
	}

	// Генерируем изображение
	imageData, err := render.AgendaPNG(agenda)
	if err != nil {
		fmt.Printf("Ошибка генерации изображения: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, imageData, 0644); err != nil {
		fmt.Printf("Ошибка сохранения файла: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Изображение сохранено в %s\n", *out)
	fmt.Printf("📅 Неделя с %s\n", weekStart.Format("02.01.2006"))
}
