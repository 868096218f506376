package models

import (
	"regexp"
	"time"
)

// DateLayout: формат ключа даты события
const DateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDate проверяет только форму YYYY-MM-DD, как и клиент календаря
func ValidDate(s string) bool {
	return datePattern.MatchString(s)
}

// Category: тип события в календаре
type Category string

const (
	CategoryBooking     Category = "예매"
	CategoryRelease     Category = "발매"
	CategoryApplication Category = "신청"
	CategoryCoupon      Category = "쿠폰"
	CategoryTheme       Category = "테마"
	CategoryOnline      Category = "온라인"
	CategoryOffline     Category = "오프라인"

	DefaultCategory = CategoryBooking
)

// Categories: все категории в порядке отображения
var Categories = []Category{
	CategoryBooking,
	CategoryRelease,
	CategoryApplication,
	CategoryCoupon,
	CategoryTheme,
	CategoryOnline,
	CategoryOffline,
}

// IsValid проверяет, что категория из известного списка
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// OrDefault подставляет DefaultCategory вместо пустого значения
func (c Category) OrDefault() Category {
	if c == "" {
		return DefaultCategory
	}
	return c
}

type Company struct {
	Name string `bson:"name" json:"name"`
	Link string `bson:"link" json:"link"`
}

type Event struct {
	EventID   int64      `bson:"eventId" json:"id"`
	Date      string     `bson:"date" json:"date"`
	Time      string     `bson:"time" json:"time"`
	Title     string     `bson:"title" json:"title"`
	Link      string     `bson:"link" json:"link"`
	Img       string     `bson:"img" json:"img"`
	Category  Category   `bson:"category" json:"category"`
	Companies []Company  `bson:"companies" json:"companies"`
	CreatedAt *time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt *time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// EventInput: редактируемые поля события, приходящие от клиента
type EventInput struct {
	ID        *int64
	Time      string
	Title     string
	Link      string
	Img       string
	Category  Category
	Companies []Company
}

// EventFields: набор полей для обновления события на месте
type EventFields struct {
	Time      string
	Title     string
	Link      string
	Img       string
	Category  Category
	Companies []Company
	UpdatedAt time.Time
}

type EventStats struct {
	Total      int64              `json:"total"`
	Today      int64              `json:"today"`
	ByCategory map[Category]int64 `json:"byCategory"`
}
