package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/services"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/gorm"
)

type TableController struct {
	DB            *gorm.DB
	PublicBaseURL string
}

func NewTableController(db *gorm.DB, publicBaseURL string) *TableController {
	return &TableController{DB: db, PublicBaseURL: publicBaseURL}
}

// CreateTable -> POST /admin/tables
func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		RestaurantID uint   `json:"restaurant_id" binding:"required"`
		Label        string `json:"label" binding:"required,max=50"`
		Capacity     int    `json:"capacity" binding:"omitempty,min=1,max=50"`
	}
	if !bindJSON(c, &req) {
		return
	}

	var restaurant models.Restaurant
	if err := tc.DB.WithContext(c.Request.Context()).First(&restaurant, req.RestaurantID).Error; err != nil {
		utils.RespondAppError(c, utils.DBError(err, utils.CodeInvalidInput, "restaurant not found"))
		return
	}

	table := models.Table{
		RestaurantID: req.RestaurantID,
		Label:        req.Label,
		Capacity:     4,
		Active:       true,
	}
	if req.Capacity > 0 {
		table.Capacity = req.Capacity
	}

	err := tc.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&table).Error; err != nil {
			return err
		}
		return services.RecordChange(tx, services.EntityTables, strconv.FormatUint(uint64(table.ID), 10), models.ChangeInsert)
	})
	if err != nil {
		if utils.IsUniqueViolation(err) {
			utils.RespondAppError(c, utils.NewAppError(utils.CodeInvalidInput, "table label already used").WithDetail("label", req.Label))
			return
		}
		utils.RespondAppError(c, utils.DBError(err, "", "failed to create table"))
		return
	}

	utils.Logger().WithField("table_id", table.ID).Infof("New table created: %s", table.Label)
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// GetAllTables -> GET /admin/tables
func (tc *TableController) GetAllTables(c *gin.Context) {
	var tables []models.Table
	q := tc.DB.WithContext(c.Request.Context()).Order("restaurant_id, id")
	if rid := c.Query("restaurant_id"); rid != "" {
		q = q.Where("restaurant_id = ?", rid)
	}
	if err := q.Find(&tables).Error; err != nil {
		utils.RespondAppError(c, utils.DBError(err, "", "failed to list tables"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// UpdateTable -> PATCH /admin/tables/:table_id
func (tc *TableController) UpdateTable(c *gin.Context) {
	tableID, ok := uintParam(c, "table_id")
	if !ok {
		return
	}
	var body struct {
		Label    *string `json:"label" binding:"omitempty,max=50"`
		Capacity *int    `json:"capacity" binding:"omitempty,min=1,max=50"`
		Active   *bool   `json:"active"`
	}
	if !bindJSON(c, &body) {
		return
	}

	updates := map[string]interface{}{}
	if body.Label != nil {
		updates["label"] = *body.Label
	}
	if body.Capacity != nil {
		updates["capacity"] = *body.Capacity
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}

	var table models.Table
	err := tc.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&table, tableID).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&table).Updates(updates).Error; err != nil {
			return err
		}
		return services.RecordChange(tx, services.EntityTables, strconv.FormatUint(uint64(table.ID), 10), models.ChangeUpdate)
	})
	if err != nil {
		utils.RespondAppError(c, utils.DBError(err, utils.CodeTableNotFound, "failed to update table"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table updated", table)
}

// TableQR -> GET /admin/tables/:table_id/qr
func (tc *TableController) TableQR(c *gin.Context) {
	tableID, ok := uintParam(c, "table_id")
	if !ok {
		return
	}
	var table models.Table
	if err := tc.DB.WithContext(c.Request.Context()).First(&table, tableID).Error; err != nil {
		utils.RespondAppError(c, utils.DBError(err, utils.CodeTableNotFound, "table not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table QR code", services.BuildTableQR(tc.PublicBaseURL, table.RestaurantID, table.ID))
}
