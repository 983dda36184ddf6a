package main

import (
	"github.com/bhavnindersingh/RecipeManager/internal/audit"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/dashboard"
	"github.com/bhavnindersingh/RecipeManager/internal/export"
	"github.com/bhavnindersingh/RecipeManager/internal/inventory"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/orders"
	"github.com/bhavnindersingh/RecipeManager/internal/payments"
	"github.com/bhavnindersingh/RecipeManager/internal/recipes"
	"github.com/bhavnindersingh/RecipeManager/internal/tables"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func registerRoutes(app *fiber.App, s services, log *zap.Logger) {
	api := app.Group("/api")

	// Public auth
	api.Post("/auth/pin", auth.PinLoginHandler(s.auth, log))
	api.Post("/auth/bootstrap-admin", auth.BootstrapAdminHandler(s.auth, log))

	protected := api.Group("", auth.JWTMiddleware(s.auth))
	protected.Get("/auth/me", auth.MeHandler())
	protected.Post("/auth/logout", auth.LogoutHandler(s.auth, log))

	// Staff
	staff := protected.Group("/users", auth.RequireScreen(auth.ScreenStaff))
	staff.Get("", auth.ListUsersHandler(s.auth, log))
	staff.Post("", auth.CreateUserHandler(s.auth, log))
	staff.Patch("/:id/active", auth.SetUserActiveHandler(s.auth, log))

	// Ingredients
	ingRead := auth.RequireScreen(auth.ScreenIngredients, auth.ScreenRecipes, auth.ScreenStock)
	ingWrite := auth.RequireScreen(auth.ScreenIngredients)
	protected.Get("/ingredients", ingRead, inventory.ListIngredientsHandler(s.ingredients, log))
	protected.Get("/ingredients/catalogue", ingRead, inventory.CatalogueHandler(s.ingredients, log))
	protected.Get("/ingredients/:id", ingRead, inventory.GetIngredientHandler(s.ingredients, log))
	protected.Post("/ingredients", ingWrite, inventory.CreateIngredientHandler(s.ingredients, log))
	protected.Post("/ingredients/import", ingWrite, inventory.ImportIngredientsHandler(s.ingredients, log))
	protected.Put("/ingredients/:id", ingWrite, inventory.UpdateIngredientHandler(s.ingredients, log))
	protected.Delete("/ingredients/:id", ingWrite, inventory.DeleteIngredientHandler(s.ingredients, log))

	// Stock ledger
	stock := protected.Group("/stock", auth.RequireScreen(auth.ScreenStock))
	stock.Get("", inventory.ListStockHandler(s.stock, log))
	stock.Get("/low", inventory.LowStockHandler(s.stock, log))
	stock.Get("/summary", inventory.StockSummaryHandler(s.stock, log))
	stock.Get("/transactions", inventory.ListTransactionsHandler(s.stock, log))
	stock.Post("/transactions", inventory.RecordTransactionHandler(s.stock, log))
	stock.Post("/transactions/bulk", inventory.BulkTransactionsHandler(s.stock))
	stock.Get("/:ingredientId", inventory.GetStockHandler(s.stock, log))
	stock.Put("/:ingredientId/settings", inventory.UpdateSettingsHandler(s.stock, log))

	// Recipes
	recRead := auth.RequireScreen(auth.ScreenRecipes, auth.ScreenPOS, auth.ScreenKDS, auth.ScreenAnalytics)
	recWrite := auth.RequireScreen(auth.ScreenRecipes)
	protected.Get("/recipes", recRead, recipes.ListRecipesHandler(s.recipes, log))
	protected.Get("/recipes/sku-preview", recWrite, recipes.PreviewSKUHandler(s.recipes, log))
	protected.Get("/recipes/sales-data", recRead, recipes.SalesDataHandler(s.recipes, log))
	protected.Get("/recipes/:id", recRead, recipes.GetRecipeHandler(s.recipes, log))
	protected.Post("/recipes", recWrite, recipes.CreateRecipeHandler(s.recipes, log))
	protected.Put("/recipes/:id", recWrite, recipes.UpdateRecipeHandler(s.recipes, log))
	protected.Delete("/recipes/:id", recWrite, recipes.DeleteRecipeHandler(s.recipes, log))
	protected.Post("/recipes/:id/images/:kind", recWrite, recipes.UploadImageHandler(s.recipes, log))
	protected.Delete("/recipes/:id/images/:kind", recWrite, recipes.RemoveImageHandler(s.recipes, log))

	// Tables
	floor := auth.RequireScreen(auth.ScreenPOS, auth.ScreenTables, auth.ScreenServer)
	tableAdmin := auth.RequireScreen(auth.ScreenTables)
	protected.Get("/tables", floor, tables.ListTablesHandler(s.tables, log))
	protected.Get("/tables/with-orders", floor, tables.TablesWithOrdersHandler(s.tables, log))
	protected.Get("/tables/:id", floor, tables.GetTableHandler(s.tables, log))
	protected.Get("/tables/:id/orders", floor, orders.TableOrdersHandler(s.orders, log))
	protected.Post("/tables", tableAdmin, tables.CreateTableHandler(s.tables, log))
	protected.Put("/tables/:id", tableAdmin, tables.UpdateTableHandler(s.tables, log))
	protected.Delete("/tables/:id", tableAdmin, tables.DeactivateTableHandler(s.tables, log))
	protected.Post("/tables/:id/reserve", floor, tables.ReserveTableHandler(s.tables, log))
	protected.Post("/tables/:id/clear", floor, tables.ClearTableHandler(s.tables, log))

	// Orders
	pos := auth.RequireScreen(auth.ScreenPOS)
	orderRead := auth.RequireScreen(auth.ScreenPOS, auth.ScreenServer, auth.ScreenKDS, auth.ScreenData)
	protected.Get("/orders", orderRead, orders.ListOrdersHandler(s.orders, log))
	protected.Get("/orders/kitchen", auth.RequireScreen(auth.ScreenKDS), orders.KitchenOrdersHandler(s.orders, log))
	protected.Get("/orders/active", orderRead, orders.ActiveOrdersHandler(s.orders, log))
	protected.Get("/orders/delivery", orderRead, orders.DeliveryOrdersHandler(s.orders, log))
	protected.Get("/orders/ready-items", auth.RequireScreen(auth.ScreenServer), orders.ReadyItemsHandler(s.orders, log))
	protected.Get("/orders/stats", orderRead, orders.StatsHandler(s.orders, log))
	protected.Get("/orders/stats/by-type", orderRead, orders.StatsByTypeHandler(s.orders, log))
	protected.Get("/orders/:id", orderRead, orders.GetOrderHandler(s.orders, log))
	protected.Post("/orders", pos, orders.CreateOrderHandler(s.orders, log))
	protected.Post("/orders/:id/items", pos, orders.AddItemsHandler(s.orders, log))
	protected.Patch("/orders/:id/status", orderRead, orders.UpdateStatusHandler(s.orders, log))
	protected.Post("/orders/:id/cancel", pos, orders.CancelOrderHandler(s.orders, log))
	protected.Patch("/order-items/:id/status", auth.RequireScreen(auth.ScreenKDS),
		orders.UpdateItemStatusHandler(s.orders, orders.StationKitchen, log))
	protected.Patch("/order-items/:id/served", auth.RequireScreen(auth.ScreenServer),
		orders.UpdateItemStatusHandler(s.orders, orders.StationFloor, log))

	// Payments
	protected.Post("/payments", pos, payments.CreatePaymentHandler(s.payments, log))
	protected.Post("/payments/:id/refund", pos, payments.RefundPaymentHandler(s.payments, log))
	protected.Get("/payments/equal-split", pos, payments.EqualSplitHandler())
	protected.Get("/payments/change", pos, payments.ChangeHandler())
	protected.Post("/orders/:id/split-payment", pos, payments.CreateSplitPaymentHandler(s.payments, log))
	protected.Get("/orders/:id/payments", orderRead, payments.ListPaymentsHandler(s.payments, log))
	protected.Get("/orders/:id/payment-summary", orderRead, payments.SummaryHandler(s.payments, log))
	protected.Get("/orders/:id/payment-check", pos, payments.CheckAmountHandler(s.payments, log))

	// Analytics
	analytics := protected.Group("/dashboard", auth.RequireScreen(auth.ScreenDashboard, auth.ScreenAnalytics))
	analytics.Get("/overview", dashboard.OverviewHandler(s.dashboard, log))
	analytics.Get("/sales-chart", dashboard.SalesChartHandler(s.dashboard, log))
	analytics.Get("/top-recipes", dashboard.TopRecipesHandler(s.dashboard, log))

	// Exports
	exports := protected.Group("/export")
	exports.Get("/orders", auth.RequireScreen(auth.ScreenData), export.OrdersHandler(s.orders, log))
	exports.Get("/ingredients", ingRead, export.IngredientsHandler(s.ingredients, log))
	exports.Get("/stock", auth.RequireScreen(auth.ScreenStock), export.StockHandler(s.stock, log))

	// Audit logs
	auditRoutes := protected.Group("/audit-logs", auth.RequireRole(models.RoleAdmin))
	auditRoutes.Get("", audit.ListAuditLogsHandler(s.audit, log))
	auditRoutes.Post("/:id/undo", audit.UndoAuditLogHandler(s.audit, log))
}
