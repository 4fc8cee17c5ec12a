package handler

import "github.com/gin-gonic/gin"

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Enrollments *EnrollmentHandler
	Grades      *GradeHandler
	Schedules   *ScheduleHandler
}

// Register mounts the enrollment, grade and schedule endpoints on api.
func (r Routes) Register(api gin.IRoutes) {
	api.POST("/enrollments", r.Enrollments.Create)
	api.DELETE("/enrollments/:id", r.Enrollments.Drop)
	api.POST("/enrollments/:id/approve", r.Enrollments.Approve)
	api.POST("/enrollments/:id/reject", r.Enrollments.Reject)
	api.POST("/enrollments/:id/withdraw", r.Enrollments.Withdraw)
	api.PUT("/enrollments/:id/grades", r.Grades.Update)
	api.GET("/eligibility", r.Enrollments.Eligibility)

	api.GET("/students/:id/cgpa", r.Grades.CGPA)
	api.POST("/students/:id/cgpa/recompute", r.Grades.Recompute)
	api.GET("/students/:id/schedule", r.Schedules.Weekly)
}
