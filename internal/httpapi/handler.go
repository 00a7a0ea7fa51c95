package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/config"
	"classtrack/internal/docs"
	"classtrack/internal/notify"
	"classtrack/internal/roster"
)

// Handler carries the services behind the HTTP surface.
type Handler struct {
	cfg        config.App
	rosterSvc  *roster.Service
	attendance *attendance.Service
	documents  *docs.Service
	feed       *notify.Repository
}

// New creates a handler.
func New(cfg config.App, rosterSvc *roster.Service, att *attendance.Service, documents *docs.Service, feed *notify.Repository) *Handler {
	return &Handler{cfg: cfg, rosterSvc: rosterSvc, attendance: att, documents: documents, feed: feed}
}

// ---------- Auth ----------

type registerRequest struct {
	Name         string   `json:"name" binding:"required"`
	RollNumber   string   `json:"roll_number" binding:"required"`
	Password     string   `json:"password" binding:"required"`
	Role         string   `json:"role" binding:"required,oneof=student staff"`
	Classes      []string `json:"classes"`
	SystemNumber *string  `json:"system_number"`
}

// Register creates an account. Students start unapproved.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.rosterSvc.Register(c.Request.Context(), roster.Student{
		Name:         req.Name,
		RollNumber:   req.RollNumber,
		Role:         req.Role,
		Classes:      req.Classes,
		SystemNumber: req.SystemNumber,
	}, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

type loginRequest struct {
	RollNumber string `json:"roll_number" binding:"required"`
	Password   string `json:"password" binding:"required"`
	DeviceID   string `json:"device_id"`
}

// Login checks credentials and issues a token pair carrying the role.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.rosterSvc.Authenticate(c.Request.Context(), req.RollNumber, req.Password, req.DeviceID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	tokens, err := auth.Issue(st.ID, st.Role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"user":          st,
	})
}

// ---------- Roster ----------

// ListStudents returns students, optionally filtered by class section.
func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.rosterSvc.ListStudents(c.Request.Context(), c.Query("class"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// GetStudent returns one student; students may only read themselves.
func (h *Handler) GetStudent(c *gin.Context) {
	claims := auth.FromContext(c)
	id := c.Param("id")
	if claims.Role != auth.RoleStaff && claims.Subject != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	st, err := h.rosterSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ApproveStudent marks a pending student as approved.
func (h *Handler) ApproveStudent(c *gin.Context) {
	if err := h.rosterSvc.Approve(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approved": true})
}

// ResetDevice clears a student's device binding.
func (h *Handler) ResetDevice(c *gin.Context) {
	if err := h.rosterSvc.ResetDevice(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// ListClasses returns the distinct class sections across the roster.
func (h *Handler) ListClasses(c *gin.Context) {
	classes, err := h.rosterSvc.ListClasses(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

// ---------- Sessions ----------

type createSessionRequest struct {
	Name        string `json:"name" binding:"required"`
	ClassFilter string `json:"class_filter"`
}

// CreateSession opens a new attendance session.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims := auth.FromContext(c)
	sess, err := h.attendance.CreateSession(c.Request.Context(), req.Name, claims.Subject, req.ClassFilter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// ListSessions lists sessions, optionally bounded by ?from/?to dates.
func (h *Handler) ListSessions(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sessions, err := h.attendance.Sessions(c.Request.Context(), from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// DeactivateSession closes a session; only its creator may.
func (h *Handler) DeactivateSession(c *gin.Context) {
	claims := auth.FromContext(c)
	if err := h.attendance.DeactivateSession(c.Request.Context(), c.Param("id"), claims.Subject); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": false})
}

// SessionReport returns records, absentees and counts for one session.
func (h *Handler) SessionReport(c *gin.Context) {
	report, err := h.attendance.SessionReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SessionAbsentees returns the computed absentee set.
func (h *Handler) SessionAbsentees(c *gin.Context) {
	absentees, err := h.attendance.Absentees(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"absentees": absentees})
}

// ManualCandidates returns the pool staff may manually mark.
func (h *Handler) ManualCandidates(c *gin.Context) {
	candidates, err := h.attendance.ManualCandidates(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}

// ---------- Check-in ----------

type checkinRequest struct {
	Token    string `json:"token" binding:"required"`
	DeviceID string `json:"device_id"`
}

// CheckIn converts a scanned join token into an attendance record for
// the calling student.
func (h *Handler) CheckIn(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims := auth.FromContext(c)
	st, err := h.rosterSvc.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !st.Approved {
		c.JSON(http.StatusForbidden, gin.H{"error": "account pending approval"})
		return
	}
	if !deviceAllowed(st.DeviceID, req.DeviceID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "device mismatch"})
		return
	}

	sess, err := h.attendance.SessionByToken(c.Request.Context(), req.Token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	rec, err := h.attendance.MarkAttendance(c.Request.Context(), attendance.CheckIn{
		SessionID:    sess.ID,
		SessionName:  sess.Name,
		StudentID:    st.ID,
		StudentName:  st.Name,
		RollNumber:   st.RollNumber,
		Class:        roster.JoinClasses(st.Classes),
		SystemNumber: st.SystemNumber,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type manualMarkRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Status    string `json:"status" binding:"required,oneof=present on_duty"`
}

// ManualMark is the staff escape hatch for device or scan failures.
func (h *Handler) ManualMark(c *gin.Context) {
	var req manualMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims := auth.FromContext(c)
	sessionID := c.Param("id")

	sess, err := h.attendance.Session(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	st, err := h.rosterSvc.Get(c.Request.Context(), req.StudentID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !st.Approved {
		c.JSON(http.StatusForbidden, gin.H{"error": "student pending approval"})
		return
	}
	rec, err := h.attendance.MarkManualAttendance(c.Request.Context(), attendance.CheckIn{
		SessionID:    sessionID,
		SessionName:  sess.Name,
		StudentID:    st.ID,
		StudentName:  st.Name,
		RollNumber:   st.RollNumber,
		Class:        roster.JoinClasses(st.Classes),
		SystemNumber: st.SystemNumber,
	}, claims.Subject, attendance.Status(req.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// ---------- Reporting ----------

// Stats returns aggregate counts, globally or for an inclusive date range.
func (h *Handler) Stats(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stats, err := h.attendance.Stats(c.Request.Context(), from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Records returns attendance records for an inclusive date range.
func (h *Handler) Records(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if from == nil || to == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to required (YYYY-MM-DD)"})
		return
	}
	records, err := h.attendance.DateRangeRecords(c.Request.Context(), *from, *to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// ---------- Documents ----------

// SendDocument uploads a multipart file addressed to a user or a class.
func (h *Handler) SendDocument(c *gin.Context) {
	claims := auth.FromContext(c)
	sender, err := h.rosterSvc.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	defer file.Close()

	doc, err := h.documents.Send(c.Request.Context(), docs.SendInput{
		Title:       c.PostForm("title"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		SizeBytes:   header.Size,
		SenderID:    sender.ID,
		SenderName:  sender.Name,
		RecipientID: c.PostForm("recipient_id"),
		ClassFilter: c.PostForm("class_filter"),
	}, file)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// Inbox lists the documents visible to the caller.
func (h *Handler) Inbox(c *gin.Context) {
	claims := auth.FromContext(c)
	user, err := h.rosterSvc.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	inbox, err := h.documents.Inbox(c.Request.Context(), user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": inbox})
}

// DeleteDocument removes a document the caller sent.
func (h *Handler) DeleteDocument(c *gin.Context) {
	claims := auth.FromContext(c)
	if err := h.documents.Delete(c.Request.Context(), c.Param("id"), claims.Subject); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ---------- Notifications ----------

// Notifications returns the caller's in-app feed.
func (h *Handler) Notifications(c *gin.Context) {
	claims := auth.FromContext(c)
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	feed, err := h.feed.ListForUser(c.Request.Context(), claims.Subject, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": feed})
}

// MarkNotificationRead flags one feed entry as read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	claims := auth.FromContext(c)
	if err := h.feed.MarkRead(c.Request.Context(), c.Param("id"), claims.Subject); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

// ---------- helpers ----------

// deviceAllowed gates check-ins for accounts with a device binding: a
// bound account must present exactly its bound device id. Omitting the
// field does not bypass the binding. Unbound accounts may check in from
// anywhere until their first login binds a device.
func deviceAllowed(bound *string, presented string) bool {
	if bound == nil {
		return true
	}
	return presented != "" && *bound == presented
}

func dateRange(c *gin.Context) (*time.Time, *time.Time, error) {
	parse := func(key string) (*time.Time, error) {
		v := c.Query(key)
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, errors.New(key + " must be YYYY-MM-DD")
		}
		return &t, nil
	}
	from, err := parse("from")
	if err != nil {
		return nil, nil, err
	}
	to, err := parse("to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// writeError maps domain sentinels to HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrValidation),
		errors.Is(err, roster.ErrValidation),
		errors.Is(err, docs.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrAlreadyMarked):
		c.JSON(http.StatusConflict, gin.H{"error": "already marked"})
	case errors.Is(err, attendance.ErrSessionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "session no longer accepting check-ins"})
	case errors.Is(err, roster.ErrRollTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "roll number already registered"})
	case errors.Is(err, attendance.ErrNotCreator):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, roster.ErrBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, attendance.ErrNotFound),
		errors.Is(err, roster.ErrNotFound),
		errors.Is(err, docs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, docs.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
