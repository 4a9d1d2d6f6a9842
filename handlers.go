package main

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"crucible/models"
	"crucible/pkg/fields"
	"crucible/pkg/imgload"
	"crucible/pkg/intake"
	"crucible/pkg/pipeline"
	"crucible/pkg/sheets"
)

const maxUploadBytes = 10 << 20

func setupRoutes(r *gin.Engine) {
	r.GET("/healthz", healthHandler)
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.GET("/portraits", listPortraitsHandler)
	authGroup.POST("/screenshots", uploadScreenshotHandler)
	authGroup.GET("/screenshots", listScreenshotsHandler)
	authGroup.GET("/screenshots/:id", getScreenshotHandler)
	authGroup.PATCH("/records/:id", updateRecordHandler)
	authGroup.POST("/records/:id/send", sendRecordHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		token, err := jwt.Parse(authHeader[7:], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func healthHandler(c *gin.Context) {
	status := gin.H{"status": "ok", "portraits": analyzer.Processor.Library().Len(), "ocr": analyzer.Recognizer != nil, "sheet": sheet.Configured()}
	if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

func meHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": user.Username, "role": user.Role.Name})
}

// getUserFromContext fetches the currently authenticated user using the username set by jwtAuthMiddleware
func getUserFromContext(c *gin.Context) (*models.User, bool) {
	uname := c.GetString("username")
	if uname == "" {
		return nil, false
	}
	var user models.User
	if err := db.Preload("Role").Where("username = ?", uname).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

func isAdmin(c *gin.Context) bool {
	return c.GetString("role") == models.RoleAdministrator
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := RegisterUser(req.Username, req.Password); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errUserExists) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	tokenString, err := issueAccessToken(user, loginTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || !rt.Usable(time.Now()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.Preload("Role").First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	tokenString, err := issueAccessToken(user, refreshTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

func listPortraitsHandler(c *gin.Context) {
	lib := analyzer.Processor.Library()
	out := make([]gin.H, 0, lib.Len())
	for i := 0; i < lib.Len(); i++ {
		e := lib.Entry(i)
		out = append(out, gin.H{"name": e.Name, "source": e.Source})
	}
	c.JSON(http.StatusOK, gin.H{"size": lib.Size(), "portraits": out})
}

// uploadScreenshotHandler stores a result screen, reads it and returns the
// resulting record. Re-uploading the same file returns the stored record.
func uploadScreenshotHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 10MB)"})
		return
	}
	if !imgload.IsSupportedExt(file.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": imgload.ErrUnsupported.Error()})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	f.Close()
	if err != nil || len(data) > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}

	sum := intake.Hash(data)
	if dup, err := intake.FindDuplicate(db, user.ID, sum); err == nil && dup != nil {
		c.JSON(http.StatusOK, screenshotView(*dup, true))
		return
	}

	an, err := analyzer.Analyze(c.Request.Context(), data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	rel := path.Join("screens", strconv.FormatUint(uint64(user.ID), 10), uuid.NewString()+ext)
	full := filepath.Join(uploadBaseDir(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
		return
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	ct := file.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = imgload.MimeFromExt(file.Filename)
	}
	shot, err := intake.Save(db, intake.Upload{UserID: user.ID, FileName: file.Filename, StorePath: rel, ContentType: ct}, an)
	if err != nil {
		_ = os.Remove(full)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	c.JSON(http.StatusOK, screenshotView(shot, false))
}

// listScreenshotsHandler returns screenshots; admin sees all, users their own.
func listScreenshotsHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	q := db.Model(&models.Screenshot{}).Preload("Record")
	if !isAdmin(c) {
		q = q.Where("user_id = ?", user.ID)
	}
	if c.Query("failed") == "true" {
		q = q.Where("failed = ?", true)
	}
	var shots []models.Screenshot
	if err := q.Order("id desc").Limit(100).Find(&shots).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(shots))
	for _, s := range shots {
		out = append(out, screenshotView(s, false))
	}
	c.JSON(http.StatusOK, out)
}

// getScreenshotHandler returns a single screenshot if admin or owner.
func getScreenshotHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var shot models.Screenshot
	if err := db.Preload("Record").First(&shot, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if !isAdmin(c) && shot.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	view := screenshotView(shot, false)
	view["raw_text"] = shot.RawText
	c.JSON(http.StatusOK, view)
}

type recordEdit struct {
	Attack        []string `json:"attack"`
	Defense       []string `json:"defense"`
	Season        *string  `json:"season"`
	StageName     *string  `json:"stage_name"`
	Room          *int     `json:"room"`
	AttackPower   *int64   `json:"attack_power"`
	DefensePower  *int64   `json:"defense_power"`
	VictoryPoints *int64   `json:"victory_points"`
}

// apply returns rec with the edit applied. Metrics follow the powers.
func (e recordEdit) apply(rec pipeline.Record) pipeline.Record {
	rec = rec.WithNames(e.Attack, e.Defense)
	if e.Season != nil {
		rec.Fields.Season = strings.TrimSpace(*e.Season)
	}
	if e.StageName != nil {
		rec.Fields.StageName = strings.TrimSpace(*e.StageName)
		if e.Room == nil {
			rec.Fields.Room = fields.RoomFromStage(rec.Fields.StageName)
		}
	}
	if e.Room != nil {
		room := *e.Room
		rec.Fields.Room = &room
	}
	if e.VictoryPoints != nil {
		rec.Fields.VictoryPoints = *e.VictoryPoints
	}
	attack, defense := rec.Fields.AttackPower, rec.Fields.DefensePower
	if e.AttackPower != nil {
		attack = *e.AttackPower
	}
	if e.DefensePower != nil {
		defense = *e.DefensePower
	}
	return rec.WithPowers(attack, defense)
}

// updateRecordHandler applies a review edit to a record.
func updateRecordHandler(c *gin.Context) {
	rec, ok := ownedRecord(c)
	if !ok {
		return
	}
	var req recordEdit
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Attack) > pipeline.TeamSize || len(req.Defense) > pipeline.TeamSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at most 5 names per side"})
		return
	}
	if err := intake.UpdateRecord(db, rec, req.apply(rec.Record())); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, recordView(*rec))
}

// sendRecordHandler appends the record and its screenshot to the sheet.
func sendRecordHandler(c *gin.Context) {
	rec, ok := ownedRecord(c)
	if !ok {
		return
	}
	if !sheet.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": sheets.ErrNotConfigured.Error()})
		return
	}
	var shot models.Screenshot
	if err := db.First(&shot, rec.ScreenshotID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "screenshot not found"})
		return
	}
	data, err := os.ReadFile(filepath.Join(uploadBaseDir(), filepath.FromSlash(shot.StorePath)))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "screenshot file missing"})
		return
	}
	link, err := sheet.Append(c.Request.Context(), rec.Record().Row(), sheets.DataURL(shot.ContentType, data))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	now := time.Now()
	rec.SheetURL = link
	rec.SentAt = &now
	if err := db.Save(rec).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record send"})
		return
	}
	c.JSON(http.StatusOK, recordView(*rec))
}

// ownedRecord loads the :id record and checks the caller may touch it. It
// writes the error response itself.
func ownedRecord(c *gin.Context) (*models.MatchRecord, bool) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return nil, false
	}
	id, ok := idParam(c)
	if !ok {
		return nil, false
	}
	var rec models.MatchRecord
	if err := db.First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		}
		return nil, false
	}
	if !isAdmin(c) && rec.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}
	return &rec, true
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func screenshotView(s models.Screenshot, duplicate bool) gin.H {
	out := gin.H{
		"id":            s.ID,
		"public_id":     s.PublicID,
		"file_name":     s.FileName,
		"store_path":    s.StorePath,
		"content_type":  s.ContentType,
		"width":         s.Width,
		"height":        s.Height,
		"failed":        s.Failed,
		"failed_reason": s.FailedReason,
		"created_at":    s.CreatedAt,
	}
	if duplicate {
		out["duplicate"] = true
	}
	if s.Record != nil {
		out["record"] = recordView(*s.Record)
	}
	return out
}

func recordView(m models.MatchRecord) gin.H {
	rec := m.Record()
	return gin.H{
		"id":                m.ID,
		"public_id":         m.PublicID,
		"screenshot_id":     m.ScreenshotID,
		"attack":            rec.Attack,
		"defense":           rec.Defense,
		"slots":             rec.Slots,
		"fields":            rec.Fields,
		"metrics":           rec.Metrics,
		"differential_text": rec.Metrics.DifferentialText(),
		"percentage_text":   rec.Metrics.PercentageText(),
		"matched":           m.Matched,
		"row":               rec.Row(),
		"sheet_url":         m.SheetURL,
		"sent_at":           m.SentAt,
	}
}
