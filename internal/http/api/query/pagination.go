package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Page size bounds for list endpoints.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is the paginated list envelope.
type Page struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// Paginate counts q, loads the requested page into dest, and builds the
// envelope with absolute next/previous links derived from the request URL.
func Paginate(c *gin.Context, q *gorm.DB, dest any) (Page, error) {
	page := parsePositiveInt(c.Query("page"), 1)
	pageSize := parsePositiveInt(c.Query("page_size"), DefaultPageSize)
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	// Count and fetch run on separate sessions so the finishers do not share
	// a statement.
	var count int64
	if errCount := q.Session(&gorm.Session{}).Count(&count).Error; errCount != nil {
		return Page{}, fmt.Errorf("query: count: %w", errCount)
	}

	offset := (page - 1) * pageSize
	if errFind := q.Session(&gorm.Session{}).Offset(offset).Limit(pageSize).Find(dest).Error; errFind != nil {
		return Page{}, fmt.Errorf("query: page: %w", errFind)
	}

	result := Page{Count: count, Results: dest}
	if int64(offset+pageSize) < count {
		result.Next = pageLink(c, page+1)
	}
	if page > 1 {
		result.Previous = pageLink(c, page-1)
	}
	return result, nil
}

// pageLink rebuilds the request URL pointing at another page.
func pageLink(c *gin.Context, page int) *string {
	u := *c.Request.URL
	values := u.Query()
	if page <= 1 {
		values.Del("page")
	} else {
		values.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = values.Encode()

	link := absoluteURL(c, &u)
	return &link
}

// absoluteURL prefixes a relative request URL with scheme and host.
func absoluteURL(c *gin.Context, u *url.URL) string {
	if u.IsAbs() {
		return u.String()
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + u.String()
}

// parsePositiveInt parses s, falling back when absent or invalid.
func parsePositiveInt(s string, fallback int) int {
	value, errParse := strconv.Atoi(strings.TrimSpace(s))
	if errParse != nil || value < 1 {
		return fallback
	}
	return value
}
