package models

import (
	"time"
)

// Visit: запись журнала посещений (коллекция принадлежит другому сервису, только чтение)
type Visit struct {
	URL       string     `bson:"url"`
	PageName  string     `bson:"pageName"`
	VisitedAt *time.Time `bson:"visitedAt,omitempty"`
}

type UnmappedDomain struct {
	Domain           string     `json:"domain"`
	NormalizedDomain string     `json:"normalizedDomain"`
	VisitCount       int64      `json:"visitCount"`
	LastVisit        *time.Time `json:"lastVisit"`
	URLs             []string   `json:"urls"`
	OriginalURL      string     `json:"originalUrl"`
}

type UnmappedSort string

const (
	SortByVisits UnmappedSort = "visits"
	SortByRecent UnmappedSort = "recent"
	SortByDomain UnmappedSort = "domain"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

type UnmappedQuery struct {
	Page   int
	Limit  int
	Sort   UnmappedSort
	Order  SortOrder
	Search string
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type UnmappedPage struct {
	Domains    []UnmappedDomain `json:"domains"`
	Pagination Pagination       `json:"pagination"`
}
