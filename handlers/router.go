package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"

	"exam-server-go/metrics"
	mw "exam-server-go/middleware"
)

// NewRouter builds the gin engine with middleware and every API route.
func NewRouter(h *APIHandler) *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(ginzap.Ginzap(h.Logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(h.Logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     h.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(metrics.Middleware())
	router.MaxMultipartMemory = h.Server.UploadMaxBytes

	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api")
	api.Use(mw.Session(h.Sessions, h.Session.CookieName, h.Logger))
	api.GET("/ping", PingHandler)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.GET("/me", h.Me)
		auth.POST("/logout", mw.RequireAuth(), h.Logout)
		auth.POST("/impersonate/:branchId", mw.RequireAdmin(), h.ImpersonateBranch)
		auth.POST("/impersonate/student/:studentId", mw.RequireBranchManager(), h.ImpersonateStudent)
		auth.POST("/impersonate/parent/:parentId", mw.RequireBranchManager(), h.ImpersonateParent)
	}

	exams := api.Group("/exams")
	{
		exams.GET("", mw.RequireAuth(), h.ListExams)
		exams.GET("/available", mw.RequireAuth(), h.AvailableExams)
		exams.GET("/:id", mw.RequireAuth(), h.GetExam)
		exams.POST("", mw.RequireAdmin(), h.CreateExam)
		exams.POST("/upload", mw.RequireAdmin(), h.UploadExam)
		exams.PATCH("/:id", mw.RequireAdmin(), h.UpdateExam)
		exams.DELETE("/:id", mw.RequireAdmin(), h.DeleteExam)
	}

	branches := api.Group("/branches", mw.RequireAdmin())
	{
		branches.GET("", h.ListBranches)
		branches.POST("", h.CreateBranch)
		branches.POST("/reorder", h.ReorderBranches)
		branches.PUT("/:id", h.UpdateBranch)
		branches.DELETE("/:id", h.DeleteBranch)
	}

	dists := api.Group("/distributions")
	{
		dists.GET("", mw.RequireAdminOrBranch(), h.ListDistributions)
		dists.POST("", mw.RequireAdminOrBranch(), h.CreateDistribution)
		dists.GET("/:id", mw.RequireAdminOrBranch(), h.GetDistribution)
		dists.PUT("/:id", mw.RequireAdminOrBranch(), h.UpdateDistribution)
		dists.DELETE("/:id", mw.RequireAdminOrBranch(), h.DeleteDistribution)
		dists.GET("/:id/students", mw.RequireBranchManager(), h.DistributionStudents)
		dists.GET("/:id/results.xlsx", mw.RequireBranchManager(), h.ExportDistribution)
	}

	classes := api.Group("/classes", mw.RequireBranchManager())
	{
		classes.GET("", h.ListClasses)
		classes.POST("", h.CreateClass)
		classes.PUT("/:id", h.UpdateClass)
		classes.GET("/:id/students", h.ClassStudents)
		classes.POST("/:id/students/:studentId", h.AssignStudent)
		classes.DELETE("/:id/students/:studentId", h.UnassignStudent)
	}

	students := api.Group("/students")
	{
		students.GET("/me", mw.RequireStudent(), h.MyStudentProfile)
		students.GET("", mw.RequireBranchManager(), h.ListStudents)
		students.POST("", mw.RequireBranchManager(), h.CreateStudent)
		students.POST("/import", mw.RequireBranchManager(), h.ImportStudents)
		students.GET("/branch-students", mw.RequireBranchManager(), h.BranchStudents)
		students.PUT("/:id", mw.RequireBranchManager(), h.UpdateStudent)
		students.POST("/:id/login-as", mw.RequireBranchManager(), h.ImpersonateStudent)
	}

	branchStudents := api.Group("/branch-students", mw.RequireBranchManager())
	{
		branchStudents.GET("/branch-students", h.BranchStudents)
		branchStudents.GET("/stats", h.BranchStats)
	}

	parents := api.Group("/parents", mw.RequireBranchManager())
	{
		parents.GET("", h.ListParents)
		parents.POST("", h.CreateParent)
	}

	api.GET("/my-exams", mw.RequireStudent(), h.MyExams)
	api.GET("/my-exams/:distributionId", mw.RequireStudent(), h.MyExam)

	attempts := api.Group("/exam-attempts")
	{
		attempts.POST("", mw.RequireStudent(), h.StartAttempt)
		attempts.GET("/branch/completed", mw.RequireAdminOrBranch(), h.CompletedAttempts)
		attempts.POST("/branch-create", mw.RequireBranchManager(), h.BranchCreateAttempt)
		attempts.GET("/:id", mw.RequireAuth(), h.GetAttempt)
		attempts.PUT("/:id", mw.RequireStudent(), h.SaveAnswers)
		attempts.POST("/:id/submit", mw.RequireStudent(), h.SubmitAttempt)
		attempts.PUT("/:id/branch-grade", mw.RequireBranchManager(), h.BranchGrade)
		attempts.DELETE("/:id", mw.RequireBranchManager(), h.DeleteAttempt)
	}
	api.GET("/branch/completed", mw.RequireAdminOrBranch(), h.CompletedAttempts)

	reports := api.Group("/reports", mw.RequireAuth())
	{
		reports.POST("/generate/:attemptId", h.GenerateReport)
		reports.GET("/attempt/:attemptId", h.ReportByAttempt)
		reports.GET("/:reportId", h.ReportHTML)
	}

	admin := api.Group("/admin", mw.RequireAdmin())
	{
		admin.GET("/stats", h.AdminStats)
		admin.GET("/recent-activity", h.RecentActivity)
	}

	return router
}
