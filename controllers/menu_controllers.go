package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MenuController struct {
	DB *gorm.DB
}

func NewMenuController(db *gorm.DB) *MenuController {
	return &MenuController{DB: db}
}

// GetMenu -> GET /restaurants/:restaurant_id/menu, available items only
func (mc *MenuController) GetMenu(c *gin.Context) {
	restaurantID, ok := uintParam(c, "restaurant_id")
	if !ok {
		return
	}
	var items []models.MenuItem
	if err := mc.DB.WithContext(c.Request.Context()).
		Where("restaurant_id = ? AND is_available = ?", restaurantID, true).
		Order("name").
		Find(&items).Error; err != nil {
		utils.RespondAppError(c, utils.DBError(err, "", "failed to load menu"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu", items)
}

// CreateMenuItem -> POST /admin/menu
func (mc *MenuController) CreateMenuItem(c *gin.Context) {
	var req struct {
		RestaurantID         uint                         `json:"restaurant_id" binding:"required"`
		Name                 string                       `json:"name" binding:"required,max=255"`
		Description          string                       `json:"description"`
		Price                float64                      `json:"price" binding:"gte=0"`
		CustomizationOptions []models.CustomizationOption `json:"customization_options"`
	}
	if !bindJSON(c, &req) {
		return
	}

	item := models.MenuItem{
		RestaurantID:         req.RestaurantID,
		Name:                 req.Name,
		Description:          req.Description,
		Price:                utils.RoundMoney(req.Price),
		IsAvailable:          true,
		CustomizationOptions: datatypes.NewJSONType(req.CustomizationOptions),
	}
	if err := mc.DB.WithContext(c.Request.Context()).Create(&item).Error; err != nil {
		utils.RespondAppError(c, utils.DBError(err, "", "failed to create menu item"))
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Menu item created", item)
}

// SetAvailability -> PATCH /admin/menu/:menu_id/availability
func (mc *MenuController) SetAvailability(c *gin.Context) {
	menuID, ok := uintParam(c, "menu_id")
	if !ok {
		return
	}
	var body struct {
		IsAvailable *bool `json:"is_available" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	var item models.MenuItem
	if err := mc.DB.WithContext(c.Request.Context()).First(&item, menuID).Error; err != nil {
		utils.RespondAppError(c, utils.DBError(err, utils.CodeInvalidInput, "menu item not found"))
		return
	}
	if err := mc.DB.WithContext(c.Request.Context()).Model(&item).Update("is_available", *body.IsAvailable).Error; err != nil {
		utils.RespondAppError(c, utils.DBError(err, "", "failed to update menu item"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu item updated", item)
}
