package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/wire"
)

func idParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil || id == uuid.Nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func toWireLesson(l model.Lesson) wire.Lesson {
	return wire.Lesson{
		ID:                l.ID.String(),
		CourseID:          l.CourseID.String(),
		Title:             l.Title,
		DurationSeconds:   l.DurationSeconds,
		MaxPauses:         l.MaxPauses,
		AccessCodeEnabled: l.AccessCodeEnabled,
		CreatedAt:         l.CreatedAt,
	}
}

// POST /api/lessons
func (h *handlers) createLesson(c *gin.Context) {
	var req wire.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid body")
		return
	}
	course, err := uuid.FromString(req.CourseID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid courseId")
		return
	}
	l, err := h.Lessons.Create(c.Request.Context(), model.Lesson{
		CourseID:        course,
		Title:           req.Title,
		AudioKey:        req.AudioKey,
		DurationSeconds: req.DurationSeconds,
		MaxPauses:       req.MaxPauses,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, toWireLesson(*l))
}

// GET /api/lessons/:id
func (h *handlers) getLesson(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	l, err := h.Lessons.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, toWireLesson(*l))
}

// GET /api/courses/:id/lessons
func (h *handlers) listLessons(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ls, err := h.Lessons.ListByCourse(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	out := wire.LessonList{Lessons: make([]wire.Lesson, 0, len(ls))}
	for _, l := range ls {
		out.Lessons = append(out.Lessons, toWireLesson(l))
	}
	RespondOK(c, out)
}

// POST /api/courses/:id/enrollments
func (h *handlers) enroll(c *gin.Context) {
	course, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req wire.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid body")
		return
	}
	user, err := uuid.FromString(req.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid userId")
		return
	}
	if err := h.Lessons.Enroll(c.Request.Context(), user, course); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/lessons/:id/audio streams the asset to enrolled users.
func (h *handlers) lessonAudio(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p := principal(c)
	rc, size, err := h.Lessons.OpenAudio(c.Request.Context(), p.UserID, p.Role, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Cache-Control", "no-store")
	if size >= 0 {
		c.Header("Content-Length", strconv.FormatInt(size, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		// headers are gone; nothing left to tell the client
		h.Log.Warn("audio stream aborted", zap.String("lesson", id.String()), zap.Error(err))
	}
}
