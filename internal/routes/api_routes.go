package routes

import (
	"github.com/gin-gonic/gin"

	"itbudget/internal/handlers"
	"itbudget/internal/middleware"
)

// RegisterAPIRoutes registers every authenticated API route. Each mutating
// route is gated by the permission code the operation requires; reads share
// a view code per document family.
func RegisterAPIRoutes(api *gin.RouterGroup) {
	apiGroup := api.Group("/api")
	{
		apiGroup.GET("/me", handlers.CurrentUserHandler)
		apiGroup.GET("/approvals/queue", handlers.ApprovalQueueHandler)

		pools := apiGroup.Group("/budget-pools")
		pools.Use(middleware.PermissionMiddleware("budget_view"))
		{
			pools.GET("", handlers.ListBudgetPoolsHandler)
			pools.GET("/:id", handlers.GetBudgetPoolHandler)
			pools.POST("", middleware.PermissionMiddleware("budget_edit"), handlers.CreateBudgetPoolHandler)
			pools.PUT("/:id", middleware.PermissionMiddleware("budget_edit"), handlers.UpdateBudgetPoolHandler)

			pools.POST("/:id/categories", middleware.PermissionMiddleware("budget_edit"), handlers.CreateCategoriesHandler)
			pools.POST("/:id/categories/reorder", middleware.PermissionMiddleware("budget_edit"), handlers.ReorderCategoriesHandler)
		}

		categories := apiGroup.Group("/categories")
		categories.Use(middleware.PermissionMiddleware("budget_edit"))
		{
			categories.PUT("/:id", handlers.UpdateCategoryHandler)
			categories.DELETE("/:id", handlers.DeactivateCategoryHandler)
		}

		projects := apiGroup.Group("/projects")
		projects.Use(middleware.PermissionMiddleware("projects_view"))
		{
			projects.GET("", handlers.ListProjectsHandler)
			projects.GET("/:id", handlers.GetProjectHandler)
			projects.POST("", middleware.PermissionMiddleware("projects_edit"), handlers.CreateProjectHandler)
			projects.PUT("/:id", middleware.PermissionMiddleware("projects_edit"), handlers.UpdateProjectHandler)
			projects.DELETE("/:id", middleware.PermissionMiddleware("projects_delete"), handlers.DeleteProjectHandler)
		}

		proposals := apiGroup.Group("/proposals")
		proposals.Use(middleware.PermissionMiddleware("proposals_view"))
		{
			proposals.GET("", handlers.ListProposalsHandler)
			proposals.GET("/:id", handlers.GetProposalHandler)
			proposals.POST("", middleware.PermissionMiddleware("proposals_edit"), handlers.CreateProposalHandler)
			proposals.PUT("/:id", middleware.PermissionMiddleware("proposals_edit"), handlers.UpdateProposalHandler)
			proposals.DELETE("/:id", middleware.PermissionMiddleware("proposals_edit"), handlers.DeleteProposalHandler)

			proposals.POST("/:id/attachment", middleware.PermissionMiddleware("proposals_edit"), handlers.UploadProposalAttachmentHandler)
			proposals.POST("/:id/submit", middleware.PermissionMiddleware("proposals_edit"), handlers.SubmitProposalHandler)
			proposals.POST("/:id/approve", middleware.PermissionMiddleware("proposals_decide"), handlers.ApproveProposalHandler)
			proposals.POST("/:id/reject", middleware.PermissionMiddleware("proposals_decide"), handlers.RejectProposalHandler)
			proposals.POST("/:id/request-info", middleware.PermissionMiddleware("proposals_decide"), handlers.RequestProposalInfoHandler)
		}

		orders := apiGroup.Group("/purchase-orders")
		orders.Use(middleware.PermissionMiddleware("orders_view"))
		{
			orders.GET("", handlers.ListPurchaseOrdersHandler)
			orders.GET("/:id", handlers.GetPurchaseOrderHandler)
			orders.POST("", middleware.PermissionMiddleware("orders_edit"), handlers.CreatePurchaseOrderHandler)
			orders.PUT("/:id", middleware.PermissionMiddleware("orders_edit"), handlers.UpdatePurchaseOrderHandler)
			orders.DELETE("/:id", middleware.PermissionMiddleware("orders_edit"), handlers.DeletePurchaseOrderHandler)

			orders.POST("/:id/submit", middleware.PermissionMiddleware("orders_edit"), handlers.SubmitPurchaseOrderHandler)
			orders.POST("/:id/approve", middleware.PermissionMiddleware("orders_decide"), handlers.ApprovePurchaseOrderHandler)
			orders.POST("/:id/reject", middleware.PermissionMiddleware("orders_decide"), handlers.RejectPurchaseOrderHandler)
		}

		expenses := apiGroup.Group("/expenses")
		expenses.Use(middleware.PermissionMiddleware("expenses_view"))
		{
			expenses.GET("", handlers.ListExpensesHandler)
			expenses.GET("/export", handlers.ExportExpensesHandler)
			expenses.GET("/:id", handlers.GetExpenseHandler)
			expenses.POST("", middleware.PermissionMiddleware("expenses_edit"), handlers.CreateExpenseHandler)
			expenses.PUT("/:id", middleware.PermissionMiddleware("expenses_edit"), handlers.UpdateExpenseHandler)
			expenses.DELETE("/:id", middleware.PermissionMiddleware("expenses_edit"), handlers.DeleteExpenseHandler)
			expenses.POST("/:id/receipt", middleware.PermissionMiddleware("expenses_edit"), handlers.UploadExpenseReceiptHandler)
		}

		chargeOuts := apiGroup.Group("/charge-outs")
		chargeOuts.Use(middleware.PermissionMiddleware("charge_outs_view"))
		{
			chargeOuts.GET("", handlers.ListChargeOutsHandler)
			chargeOuts.GET("/:id", handlers.GetChargeOutHandler)
			chargeOuts.POST("", middleware.PermissionMiddleware("charge_outs_edit"), handlers.CreateChargeOutHandler)
			chargeOuts.PUT("/:id", middleware.PermissionMiddleware("charge_outs_edit"), handlers.UpdateChargeOutHandler)
			chargeOuts.DELETE("/:id", middleware.PermissionMiddleware("charge_outs_edit"), handlers.DeleteChargeOutHandler)

			chargeOuts.POST("/:id/submit", middleware.PermissionMiddleware("charge_outs_edit"), handlers.SubmitChargeOutHandler)
			chargeOuts.POST("/:id/approve", middleware.PermissionMiddleware("charge_outs_decide"), handlers.ApproveChargeOutHandler)
			chargeOuts.POST("/:id/reject", middleware.PermissionMiddleware("charge_outs_decide"), handlers.RejectChargeOutHandler)
		}

		omExpenses := apiGroup.Group("/om-expenses")
		omExpenses.Use(middleware.PermissionMiddleware("om_expenses_view"))
		{
			omExpenses.GET("", handlers.ListOMExpensesHandler)
			omExpenses.GET("/export", handlers.ExportOMExpensesHandler)
			omExpenses.GET("/:id", handlers.GetOMExpenseHandler)
			omExpenses.POST("", middleware.PermissionMiddleware("om_expenses_edit"), handlers.CreateOMExpenseHandler)
			omExpenses.DELETE("/:id", middleware.PermissionMiddleware("om_expenses_edit"), handlers.DeleteOMExpenseHandler)
			omExpenses.PUT("/items/:id/record", middleware.PermissionMiddleware("om_expenses_edit"), handlers.UpdateOMExpenseRecordHandler)
		}

		opCos := apiGroup.Group("/opcos")
		{
			opCos.GET("", handlers.ListOpCosHandler)
			opCos.POST("", middleware.PermissionMiddleware("opcos_edit"), handlers.CreateOpCoHandler)
			opCos.PUT("/:id", middleware.PermissionMiddleware("opcos_edit"), handlers.UpdateOpCoHandler)
			opCos.DELETE("/:id", middleware.PermissionMiddleware("opcos_edit"), handlers.DeleteOpCoHandler)
		}

		vendors := apiGroup.Group("/vendors")
		vendors.Use(middleware.PermissionMiddleware("vendors_view"))
		{
			vendors.GET("", handlers.ListVendorsHandler)
			vendors.POST("", middleware.PermissionMiddleware("vendors_edit"), handlers.CreateVendorHandler)
			vendors.PUT("/:id", middleware.PermissionMiddleware("vendors_edit"), handlers.UpdateVendorHandler)
			vendors.DELETE("/:id", middleware.PermissionMiddleware("vendors_edit"), handlers.DeleteVendorHandler)
			vendors.POST("/:id/quotes", middleware.PermissionMiddleware("vendors_edit"), handlers.UploadQuoteHandler)
		}
		apiGroup.GET("/quotes", middleware.PermissionMiddleware("vendors_view"), handlers.ListQuotesHandler)

		users := apiGroup.Group("/users")
		users.Use(middleware.PermissionMiddleware("users_view"))
		{
			users.GET("", handlers.ListUsersHandler)
			users.GET("/:id", handlers.GetUserHandler)
			users.PUT("/:id/role", middleware.PermissionMiddleware("users_edit"), handlers.SetUserRoleHandler)
			users.GET("/:id/grants", middleware.PermissionMiddleware("users_edit"), handlers.ListUserGrantsHandler)
			users.PUT("/:id/grants", middleware.PermissionMiddleware("users_edit"), handlers.SetUserGrantsHandler)
			users.GET("/:id/opcos", middleware.PermissionMiddleware("users_edit"), handlers.ListUserOpCosHandler)
			users.PUT("/:id/opcos", middleware.PermissionMiddleware("users_edit"), handlers.SetUserOpCosHandler)
		}

		roles := apiGroup.Group("/roles")
		roles.Use(middleware.PermissionMiddleware("roles_view"))
		{
			roles.GET("", handlers.ListRolesHandler)
			roles.POST("", middleware.PermissionMiddleware("roles_edit"), handlers.CreateRoleHandler)
			roles.PUT("/:id", middleware.PermissionMiddleware("roles_edit"), handlers.UpdateRoleHandler)
			roles.DELETE("/:id", middleware.PermissionMiddleware("roles_edit"), handlers.DeleteRoleHandler)
		}

		permissions := apiGroup.Group("/permissions")
		permissions.Use(middleware.PermissionMiddleware("roles_view"))
		{
			permissions.GET("", handlers.ListPermissionsHandler)
			permissions.POST("", middleware.PermissionMiddleware("roles_edit"), handlers.CreatePermissionHandler)
		}
	}
}
