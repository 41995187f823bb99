package render

import (
	"bytes"
	"image/color"
	"strconv"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Константы размеров и отступов
const (
	imageWidth       = 1120
	imageHeight      = 760
	headerHeight     = 90
	leftLabelsWidth  = 70
	legendWidth      = 130
	dayPaddingX      = 6
	slotBorderRadius = 5.0
	shadowOffset     = 2.0
	totalDaysInWeek  = 7
	hourPaddingTop   = 1
	hourPaddingBot   = 1
	defaultMinHour   = 8
	defaultMaxHour   = 20
)

// Масштабы встроенного шрифта 7x13
const (
	titleScale  = 2.0
	dayScale    = 1.5
	hourScale   = 1.2
	slotScale   = 1.1
	legendScale = 1.0
)

// Цветовая схема
var (
	bgColor        = color.RGBA{245, 246, 248, 255}
	textColor      = color.RGBA{80, 85, 90, 255}
	hourLabelColor = color.RGBA{110, 115, 120, 255}
	hourLineColor  = color.NRGBA{150, 150, 150, 255}
	evenDayColor   = color.NRGBA{240, 240, 240, 255}
	oddDayColor    = color.NRGBA{225, 225, 225, 255}

	slotAvailableColor    = color.RGBA{133, 193, 85, 230}
	slotOccupiedColor     = color.RGBA{255, 182, 193, 255}
	slotTextColor         = color.RGBA{20, 24, 28, 255}
	slotOccupiedTextColor = color.RGBA{120, 40, 50, 255}
	slotShadowColor       = color.RGBA{0, 0, 0, 20}
)

// hourRange диапазон часов для отображения
type hourRange struct {
	start int
	end   int
	total int
}

// AgendaPNG рисует недельную сетку слотов учителя
func AgendaPNG(agenda *model.WeeklyAgenda) ([]byte, error) {
	hours := calculateHourRange(agenda)

	dc := createCanvas()
	dayWidth := (imageWidth - leftLabelsWidth - legendWidth) / totalDaysInWeek
	dayHeight := imageHeight - headerHeight
	cellHeight := float64(dayHeight) / float64(hours.total)

	drawHeader(dc, agenda.WeekStart)
	drawHourLabels(dc, hours, cellHeight)
	for i, day := range agenda.Days {
		x := float64(leftLabelsWidth + i*dayWidth)
		y := float64(headerHeight)

		drawDayBackground(dc, x, y, dayWidth, dayHeight, i)
		drawDayHeader(dc, day.Date, x, y, dayWidth)
		drawHourLines(dc, x, y, dayWidth, hours, cellHeight)
		for _, slot := range day.Slots {
			drawSlot(dc, slot, x, y, dayWidth, hours, cellHeight)
		}
	}
	drawLegend(dc, dayWidth)

	return encodeImage(dc)
}

// calculateHourRange определяет диапазон часов по занятым и свободным слотам
func calculateHourRange(agenda *model.WeeklyAgenda) hourRange {
	minHour, maxHour := 24, -1
	for _, day := range agenda.Days {
		for _, slot := range day.Slots {
			h := slotHour(slot)
			if h < minHour {
				minHour = h
			}
			if h > maxHour {
				maxHour = h
			}
		}
	}

	if maxHour < 0 {
		minHour, maxHour = defaultMinHour, defaultMaxHour
	}

	start := max(minHour-hourPaddingTop, 0)
	end := min(maxHour+hourPaddingBot, 23)

	return hourRange{start: start, end: end, total: end - start + 1}
}

func slotHour(slot model.AgendaSlot) int {
	h, err := strconv.Atoi(slot.Hour[:2])
	if err != nil {
		return 0
	}
	return h
}

// createCanvas создает новый контекст рисования с фоном
func createCanvas() *gg.Context {
	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	return dc
}

// drawText пишет строку встроенным шрифтом с масштабом
func drawText(dc *gg.Context, s string, x, y, ax, ay, scale float64) {
	dc.Push()
	dc.Translate(x, y)
	dc.Scale(scale, scale)
	dc.DrawStringAnchored(s, 0, 0, ax, ay)
	dc.Pop()
}

// drawHeader рисует заголовок с месяцем и годом
func drawHeader(dc *gg.Context, weekStart time.Time) {
	weekEnd := weekStart.AddDate(0, 0, 6)

	title := monthName(weekStart.Month())
	if weekStart.Month() != weekEnd.Month() {
		title += " - " + monthName(weekEnd.Month())
	}
	title += " " + strconv.Itoa(weekEnd.Year())

	dc.SetColor(textColor)
	drawText(dc, title, 20, float64(headerHeight)/4, 0, 0.5, titleScale)
}

// drawHourLabels рисует колонку с часами слева
func drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	dc.SetColor(hourLabelColor)
	for i := 0; i < hours.total; i++ {
		y := float64(headerHeight) + float64(i)*cellHeight
		drawText(dc, formatHourLabel(hours.start+i), float64(leftLabelsWidth)-8, y, 1, 0.5, hourScale)
	}
}

// drawDayBackground рисует фон дня
func drawDayBackground(dc *gg.Context, x, y float64, dayWidth, dayHeight, dayIndex int) {
	if dayIndex%2 == 0 {
		dc.SetColor(evenDayColor)
	} else {
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, y, float64(dayWidth), float64(dayHeight))
	dc.Fill()
}

// drawDayHeader рисует название дня недели и дату
func drawDayHeader(dc *gg.Context, date time.Time, x, y float64, dayWidth int) {
	dc.SetColor(textColor)
	cx := x + float64(dayWidth)/2
	drawText(dc, date.Format("02/01"), cx, y-38, 0.5, 0.5, dayScale)
	drawText(dc, weekdayShort(date.Weekday()), cx, y-16, 0.5, 0.5, dayScale)
}

// drawHourLines рисует горизонтальные линии часов
func drawHourLines(dc *gg.Context, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)

	for i := 0; i <= hours.total; i++ {
		hy := y + float64(i)*cellHeight
		dc.DrawLine(x, hy, x+float64(dayWidth), hy)
		dc.Stroke()
	}
}

// drawSlot рисует один часовой слот
func drawSlot(dc *gg.Context, slot model.AgendaSlot, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	h := slotHour(slot)
	if h < hours.start || h > hours.end {
		return
	}

	slotY := y + float64(h-hours.start)*cellHeight
	slotWidth := float64(dayWidth) - float64(dayPaddingX*2)
	slotHeight := cellHeight - 4
	fill := slotColor(slot.Status)

	// Тень
	dc.SetColor(slotShadowColor)
	dc.DrawRoundedRectangle(x+dayPaddingX+shadowOffset, slotY+2+shadowOffset, slotWidth, slotHeight, slotBorderRadius)
	dc.Fill()

	// Основной слот
	dc.SetColor(fill)
	dc.DrawRoundedRectangle(x+dayPaddingX, slotY+2, slotWidth, slotHeight, slotBorderRadius)
	dc.Fill()

	// Рамка
	dc.SetColor(darkenColor(fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x+dayPaddingX, slotY+2, slotWidth, slotHeight, slotBorderRadius)
	dc.Stroke()

	txt := slotTextColor
	label := slot.Hour
	if slot.Status == model.SlotOccupied {
		txt = slotOccupiedTextColor
		if slot.BookingID != nil {
			label += " #" + strconv.FormatInt(*slot.BookingID, 10)
		}
	}
	dc.SetColor(txt)
	drawText(dc, label, x+dayPaddingX+6, slotY+2+slotHeight/2, 0, 0.5, slotScale)
}

// slotColor цвет слота по статусу
func slotColor(status model.SlotStatus) color.RGBA {
	if status == model.SlotOccupied {
		return slotOccupiedColor
	}
	return slotAvailableColor
}

// darkenColor затемняет цвет на указанный множитель
func darkenColor(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

// drawLegend рисует легенду справа
func drawLegend(dc *gg.Context, dayWidth int) {
	legendX := float64(leftLabelsWidth+totalDaysInWeek*dayWidth) + 14
	legendY := float64(imageHeight) - 90

	items := []struct {
		Label string
		Clr   color.Color
	}{
		{"Disponible", slotAvailableColor},
		{"Reservado", slotOccupiedColor},
	}

	boxW, boxH := 20.0, 14.0
	for _, item := range items {
		dc.SetColor(item.Clr)
		dc.DrawRoundedRectangle(legendX, legendY, boxW, boxH, 3)
		dc.Fill()

		dc.SetColor(textColor)
		drawText(dc, item.Label, legendX+boxW+8, legendY+boxH/2, 0, 0.5, legendScale)
		legendY += boxH + 14
	}
}

// encodeImage кодирует изображение в PNG
func encodeImage(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatHourLabel(h int) string {
	if h < 10 {
		return "0" + strconv.Itoa(h) + ":00"
	}
	return strconv.Itoa(h) + ":00"
}

// короткие дни недели (basicfont только ASCII)
func weekdayShort(weekday time.Weekday) string {
	return [...]string{"Dom", "Lun", "Mar", "Mie", "Jue", "Vie", "Sab"}[weekday]
}

func monthName(month time.Month) string {
	return [...]string{
		"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
		"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
	}[month-1]
}
