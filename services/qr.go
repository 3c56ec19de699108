package services

import (
	"fmt"
	"net/url"
	"strings"
)

const qrImageEndpoint = "https://api.qrserver.com/v1/create-qr-code/?size=300x300&data="

// TableQR is what gets printed on a table.
type TableQR struct {
	RestaurantID uint   `json:"restaurant_id"`
	TableID      uint   `json:"table_id"`
	ScanURL      string `json:"scan_url"`
	ImageURL     string `json:"image_url"`
}

// BuildTableQR derives the scan URL and a rendered image URL. No state.
func BuildTableQR(baseURL string, restaurantID, tableID uint) TableQR {
	scan := fmt.Sprintf("%s/scan/%d/%d", strings.TrimRight(baseURL, "/"), restaurantID, tableID)
	return TableQR{
		RestaurantID: restaurantID,
		TableID:      tableID,
		ScanURL:      scan,
		ImageURL:     qrImageEndpoint + url.QueryEscape(scan),
	}
}
