package handlers

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"exam-server-go/db"
)

// PaginatedResponse defines the structure for any paginated API response.
type PaginatedResponse struct {
	Data        interface{} `json:"data"`
	TotalRows   int64       `json:"totalRows"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	PageSize    int         `json:"pageSize"`
}

// pageQuery reads page and pageSize; wanted is false when neither is present.
func pageQuery(c *gin.Context) (page db.Page, wanted bool) {
	rawPage, hasPage := c.GetQuery("page")
	rawSize, hasSize := c.GetQuery("pageSize")
	if !hasPage && !hasSize {
		return db.Page{}, false
	}
	page.Number, _ = strconv.Atoi(rawPage)
	page.Size, _ = strconv.Atoi(rawSize)
	return page.Normalize(), true
}

// newPaginatedResponse constructs the standard paginated response object.
func newPaginatedResponse(data interface{}, totalRows int64, page db.Page) PaginatedResponse {
	totalPages := 0
	if totalRows > 0 {
		totalPages = int(math.Ceil(float64(totalRows) / float64(page.Size)))
	}
	return PaginatedResponse{
		Data:        data,
		TotalRows:   totalRows,
		TotalPages:  totalPages,
		CurrentPage: page.Number,
		PageSize:    page.Size,
	}
}
