package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/schoollib/library/internal/app/controllers"
	"github.com/schoollib/library/internal/middleware"
)

// Controllers bundles every HTTP handler group
type Controllers struct {
	Auth    *controllers.AuthController
	School  *controllers.SchoolController
	User    *controllers.UserController
	Catalog *controllers.CatalogController
	Student *controllers.StudentController
	Ledger  *controllers.LedgerController
	Import  *controllers.ImportController
	Report  *controllers.ReportController
}

// SetupRouter configures all application routes
func SetupRouter(router *gin.Engine, c Controllers, authMiddleware *middleware.AuthMiddleware) {
	v1 := router.Group("/api/v1")

	// --- Public routes ---
	v1.POST("/auth/login", c.Auth.Login)

	// --- Any signed-in user ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	{
		authenticated.GET("/auth/me", c.Auth.Me)
		authenticated.PUT("/auth/password", c.Auth.ChangePassword)
		authenticated.GET("/dashboard/student", c.Report.StudentDashboard)

		authenticated.GET("/schools", c.School.ListSchools)
		authenticated.GET("/schools/:id", c.School.GetSchool)
		authenticated.GET("/categories", c.Catalog.ListCategories)
		authenticated.GET("/books", c.Catalog.ListBooks)
		authenticated.GET("/books/:id", c.Catalog.GetBook)
	}

	// --- Librarians (and superusers) ---
	librarian := authenticated.Group("")
	librarian.Use(authMiddleware.RequireLibrarian())
	{
		librarian.GET("/dashboard", c.Report.LibrarianDashboard)

		categories := librarian.Group("/categories")
		{
			categories.POST("", c.Catalog.CreateCategory)
			categories.PUT("/:id", c.Catalog.UpdateCategory)
			categories.DELETE("/:id", c.Catalog.DeleteCategory)
		}

		books := librarian.Group("/books")
		{
			books.POST("", c.Catalog.CreateBook)
			books.PUT("/:id", c.Catalog.UpdateBook)
			books.DELETE("/:id", c.Catalog.DeleteBook)
		}

		classGroups := librarian.Group("/class-groups")
		{
			classGroups.GET("", c.Student.ListClassGroups)
			classGroups.POST("", c.Student.CreateClassGroup)
			classGroups.GET("/:id", c.Student.GetClassGroup)
			classGroups.PUT("/:id", c.Student.UpdateClassGroup)
			classGroups.DELETE("/:id", c.Student.DeleteClassGroup)
		}

		students := librarian.Group("/students")
		{
			students.GET("", c.Student.ListStudents)
			students.POST("", c.Student.CreateStudent)
			students.GET("/:id", c.Student.GetStudent)
			students.PUT("/:id", c.Student.UpdateStudent)
			students.DELETE("/:id", c.Student.DeleteStudent)
		}

		transactions := librarian.Group("/transactions")
		{
			transactions.GET("", c.Ledger.ListTransactions)
			transactions.POST("", c.Ledger.Issue)
			transactions.POST("/issue-many", c.Ledger.IssueMany)
			transactions.POST("/bulk-return", c.Ledger.BulkReturn)
			transactions.POST("/bulk-action", c.Ledger.BulkAction)
			transactions.POST("/sweep-overdue", c.Ledger.SweepOverdue)
			transactions.GET("/:id", c.Ledger.GetTransaction)
			transactions.GET("/:id/return", c.Ledger.ReturnPreview)
			transactions.POST("/:id/return", c.Ledger.Return)
			transactions.POST("/:id/renew", c.Ledger.Renew)
			transactions.POST("/:id/lost", c.Ledger.MarkLost)
			transactions.POST("/:id/damaged", c.Ledger.MarkDamaged)
			transactions.POST("/:id/cancel", c.Ledger.Cancel)
			transactions.POST("/:id/pay-fine", c.Ledger.PayFine)
		}

		imports := librarian.Group("/imports")
		{
			imports.POST("/students", c.Import.SelfImportStudents)
			imports.POST("/students/sheet", c.Import.ImportStudentSheet)
			imports.POST("/books", c.Import.ImportBookSheet)
		}

		exports := librarian.Group("/exports")
		{
			exports.GET("/students", c.Import.ExportStudents)
			exports.GET("/books", c.Import.ExportBooks)
		}

		reports := librarian.Group("/reports")
		{
			reports.GET("", c.Report.ReportsOverview)
			reports.GET("/classes", c.Report.ClassLists)
			reports.GET("/classes/:id", c.Report.ClassDetail)
			reports.GET("/stock", c.Report.LibraryStock)
			reports.GET("/returns", c.Report.ReturnsList)
			reports.GET("/overdue", c.Report.OverdueReport)
		}
	}

	// --- Superusers only ---
	admin := authenticated.Group("")
	admin.Use(authMiddleware.RequireSuperuser())
	{
		admin.POST("/schools", c.School.CreateSchool)
		admin.PUT("/schools/:id", c.School.UpdateSchool)
		admin.DELETE("/schools/:id", c.School.DeleteSchool)

		admin.GET("/users", c.User.ListUsers)
		admin.POST("/users", c.User.CreateUser)
		admin.PUT("/users/:id/profile", c.User.UpdateProfile)
		admin.PUT("/users/:id/active", c.User.SetActive)

		admin.POST("/imports/students/batch", c.Import.BatchImportStudents)
	}
}
