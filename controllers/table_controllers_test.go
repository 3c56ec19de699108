package controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/qr-restaurant/controllers"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/services"
	"github.com/yeremiapane/qr-restaurant/utils"
)

func setupTableRouter(app *testApp) *gin.Engine {
	tableCtrl := controllers.NewTableController(app.db, "https://dine.example.com")
	menuCtrl := controllers.NewMenuController(app.db)

	r := gin.New()
	r.GET("/restaurants/:restaurant_id/menu", menuCtrl.GetMenu)
	r.POST("/menu", menuCtrl.CreateMenuItem)
	r.PATCH("/menu/:menu_id/availability", menuCtrl.SetAvailability)
	r.POST("/tables", tableCtrl.CreateTable)
	r.GET("/tables", tableCtrl.GetAllTables)
	r.PATCH("/tables/:table_id", tableCtrl.UpdateTable)
	r.GET("/tables/:table_id/qr", tableCtrl.TableQR)
	return r
}

func TestGetAllTables(t *testing.T) {
	app := newTestApp(t)
	r := setupTableRouter(app)

	w, env := do(t, r, request{method: http.MethodGet, path: "/tables"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "List of tables", env.Message)
	var tables []models.Table
	decode(t, env.Data, &tables)
	assert.Len(t, tables, 4)
}

func TestCreateTable(t *testing.T) {
	app := newTestApp(t)
	r := setupTableRouter(app)
	rid := app.seed.Restaurant.ID

	w, env := do(t, r, request{method: http.MethodPost, path: "/tables", body: gin.H{"restaurant_id": rid, "label": "Patio 1", "capacity": 6}})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	var table models.Table
	decode(t, env.Data, &table)
	assert.Equal(t, "Patio 1", table.Label)
	assert.Equal(t, 6, table.Capacity)
	assert.True(t, table.Active)

	var changes int64
	app.db.Model(&models.DBChange{}).Where("entity = ?", services.EntityTables).Count(&changes)
	assert.Equal(t, int64(1), changes)

	w, env = do(t, r, request{method: http.MethodPost, path: "/tables", body: gin.H{"restaurant_id": rid, "label": "Patio 1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.CodeInvalidInput, env.ErrorCode)

	w, _ = do(t, r, request{method: http.MethodPost, path: "/tables", body: gin.H{"restaurant_id": 999, "label": "X"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, request{method: http.MethodPost, path: "/tables", body: gin.H{"label": "X"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateTableTakesItOutOfService(t *testing.T) {
	app := newTestApp(t)
	r := setupTableRouter(app)
	table := app.seed.Tables[0]

	w, env := do(t, r, request{method: http.MethodPatch, path: fmt.Sprintf("/tables/%d", table.ID), body: gin.H{"active": false}})
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	var stored models.Table
	require.NoError(t, app.db.First(&stored, table.ID).Error)
	assert.False(t, stored.Active)

	w, env = do(t, r, request{method: http.MethodPatch, path: "/tables/9999", body: gin.H{"active": true}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, utils.CodeTableNotFound, env.ErrorCode)
}

func TestTableQR(t *testing.T) {
	app := newTestApp(t)
	r := setupTableRouter(app)
	table := app.seed.Tables[1]

	w, env := do(t, r, request{method: http.MethodGet, path: fmt.Sprintf("/tables/%d/qr", table.ID)})
	require.Equal(t, http.StatusOK, w.Code)
	var qr services.TableQR
	decode(t, env.Data, &qr)
	assert.Equal(t, fmt.Sprintf("https://dine.example.com/scan/%d/%d", table.RestaurantID, table.ID), qr.ScanURL)
	assert.Contains(t, qr.ImageURL, "api.qrserver.com")
}

func TestMenu(t *testing.T) {
	app := newTestApp(t)
	r := setupTableRouter(app)
	rid := app.seed.Restaurant.ID

	w, env := do(t, r, request{method: http.MethodGet, path: fmt.Sprintf("/restaurants/%d/menu", rid)})
	require.Equal(t, http.StatusOK, w.Code)
	var menu []models.MenuItem
	decode(t, env.Data, &menu)
	assert.Len(t, menu, 3)

	w, env = do(t, r, request{method: http.MethodPost, path: "/menu", body: gin.H{
		"restaurant_id":         rid,
		"name":                  "Tiramisu",
		"price":                 6.5,
		"customization_options": []gin.H{{"name": "Extra Cocoa", "price": 0.5}},
	}})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	var created models.MenuItem
	decode(t, env.Data, &created)
	price, ok := created.OptionPrice("Extra Cocoa")
	assert.True(t, ok)
	assert.Equal(t, 0.5, price)

	w, _ = do(t, r, request{method: http.MethodPatch, path: fmt.Sprintf("/menu/%d/availability", app.menuID("Lemonade")), body: gin.H{"is_available": false}})
	require.Equal(t, http.StatusOK, w.Code)

	_, env = do(t, r, request{method: http.MethodGet, path: fmt.Sprintf("/restaurants/%d/menu", rid)})
	decode(t, env.Data, &menu)
	names := make([]string, 0, len(menu))
	for _, m := range menu {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"Caesar Salad", "Margherita Pizza", "Tiramisu"}, names)
}
