package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"publishbot/internal/article"
	"publishbot/internal/storage"
	logx "publishbot/pkg/logx"
)

type handlers struct {
	deps    Deps
	log     logx.Logger
	started time.Time
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(deps Deps) *gin.Engine {
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &handlers{deps: deps, log: log, started: time.Now()}

	r := gin.New()
	r.Use(requestID(), recovery(log), accessLog(log))

	r.GET("/", h.health)
	r.GET("/health", h.health)
	r.GET("/status", h.status)
	r.GET("/articles/:lang", h.listArticles)
	r.POST("/articles/:lang", h.addArticle)
	r.GET("/preview/:lang/:id", h.preview)
	r.GET("/audit", h.audit)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (h *handlers) health(c *gin.Context) {
	body := gin.H{
		"status":     "ok",
		"uptime_sec": int64(time.Since(h.started).Seconds()),
	}
	if h.deps.Health != nil {
		for k, v := range h.deps.Health() {
			body[k] = v
		}
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) lang(c *gin.Context) (article.Language, Lang, bool) {
	code := c.Param("lang")
	if h.deps.Registry != nil {
		if l, ok := h.deps.Registry.Get(code); ok {
			if src, ok := h.deps.Langs[l.Code]; ok && src.Articles != nil && src.Ledger != nil {
				return l, src, true
			}
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "unknown language", "lang": code})
	return article.Language{}, Lang{}, false
}

func (h *handlers) langStatus(l article.Language, src Lang) (LangStatus, error) {
	all, err := src.Articles.List()
	if err != nil {
		return LangStatus{}, err
	}
	published, err := src.Ledger.PublishedIDs()
	if err != nil {
		return LangStatus{}, err
	}
	today, err := src.Ledger.CountToday()
	if err != nil {
		return LangStatus{}, err
	}
	st := LangStatus{
		Label:          l.Label,
		PublishedToday: today,
		Pending:        len(article.Pending(all, published)),
		Total:          len(all),
	}
	if src.Quota != nil {
		st.Quota = src.Quota()
	}
	return st, nil
}

// orderedStatus marshals as a JSON object keeping registry order.
type orderedStatus struct {
	codes []string
	byKey map[string]LangStatus
}

func (o orderedStatus) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, code := range o.codes {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(code)
		v, err := json.Marshal(o.byKey[code])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (h *handlers) status(c *gin.Context) {
	out := orderedStatus{byKey: map[string]LangStatus{}}
	if h.deps.Registry != nil {
		for _, l := range h.deps.Registry.All() {
			src, ok := h.deps.Langs[l.Code]
			if !ok || src.Articles == nil || src.Ledger == nil {
				continue
			}
			st, err := h.langStatus(l, src)
			if err != nil {
				h.fail(c, err)
				return
			}
			out.codes = append(out.codes, l.Code)
			out.byKey[l.Code] = st
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) listArticles(c *gin.Context) {
	_, src, ok := h.lang(c)
	if !ok {
		return
	}
	all, err := src.Articles.List()
	if err != nil {
		h.fail(c, err)
		return
	}
	published, err := src.Ledger.PublishedIDs()
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]ArticleView, 0, len(all))
	for _, a := range all {
		_, done := published[a.ID]
		views = append(views, ArticleView{Article: a, Published: done})
	}
	c.JSON(http.StatusOK, views)
}

func (h *handlers) addArticle(c *gin.Context) {
	l, src, ok := h.lang(c)
	if !ok {
		return
	}
	var d article.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	a, err := src.Articles.Add(d)
	if errors.Is(err, article.ErrInvalidDraft) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("article added", logx.String("lang", l.Code), logx.Int("id", a.ID), logx.String("title", a.Title))
	storage.Audit(c.Request.Context(), h.deps.Audit, h.log, storage.AuditEntry{
		At:        time.Now().UTC(),
		Lang:      l.Code,
		Action:    storage.ActionArticleAdd,
		ArticleID: a.ID,
		Title:     a.Title,
		OK:        true,
		RequestID: c.GetString(requestIDKey),
	})
	c.JSON(http.StatusCreated, a)
}

func (h *handlers) preview(c *gin.Context) {
	l, src, ok := h.lang(c)
	if !ok {
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}
	a, err := src.Articles.Get(id)
	if errors.Is(err, article.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found", "id": id})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.deps.Renderer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "renderer unavailable"})
		return
	}
	subject, html, err := h.deps.Renderer.Render(a, l)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("X-Subject", subject)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *handlers) audit(c *gin.Context) {
	if h.deps.Audit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": storage.ErrDisabled.Error()})
		return
	}
	n, err := strconv.Atoi(c.DefaultQuery("n", "50"))
	if err != nil || n <= 0 || n > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "n must be between 1 and 1000"})
		return
	}
	entries, err := h.deps.Audit.RecentAudit(c.Request.Context(), n)
	if err != nil {
		h.fail(c, err)
		return
	}
	if entries == nil {
		entries = []storage.AuditEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *handlers) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
