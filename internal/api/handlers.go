package api

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"groupmemail/internal/stories/relay"
	"groupmemail/internal/stories/subs"
)

const (
	maxWebhookBody  = 1 << 20
	thankYou        = "Thank you."
	credentialQuery = "access_token"
	credentialHdr   = "X-Access-Token"
	billingHdr      = "X-Billing-Secret"
)

func (r *Router) incoming(c *gin.Context) {
	// an unknown user is reported before a bad body
	var event relay.ChatEvent
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err == nil {
		event, err = decodeChatEvent(raw)
	}
	if err != nil {
		event = relay.ChatEvent{DecodeErr: err}
	}

	outcome, err := r.relay.HandleChatEvent(c.Request.Context(), c.Param("user_id"), event)
	if err != nil {
		r.fail(c, chatEventStatus(err), err)
		return
	}

	if outcome == relay.OutcomeSuppressed {
		c.Status(http.StatusNoContent)
		return
	}
	c.String(http.StatusOK, thankYou)
}

type emailRequest struct {
	Sender       string `json:"sender" form:"sender"`
	Recipient    string `json:"recipient" form:"recipient"`
	StrippedText string `json:"stripped-text" form:"stripped-text"`
	BodyPlain    string `json:"body-plain" form:"body-plain"`
}

func (r *Router) email(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBind(&req); err != nil {
		r.fail(c, http.StatusBadRequest, err)
		return
	}

	body := req.StrippedText
	if strings.TrimSpace(body) == "" {
		body = req.BodyPlain
	}

	err := r.relay.HandleEmailReply(c.Request.Context(), relay.EmailReply{
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Body:      body,
	})
	if err != nil {
		r.fail(c, emailReplyStatus(err), err)
		return
	}

	c.String(http.StatusOK, thankYou)
}

type subscriptionResponse struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Expiration time.Time `json:"expiration"`
	Expired    bool      `json:"expired"`
	Message    string    `json:"message"`
}

func (r *Router) subscriptionView(sub *subs.Subscription) subscriptionResponse {
	now := r.now()
	return subscriptionResponse{
		UserID:     sub.UserID,
		Email:      sub.Email,
		Expiration: sub.Expiration,
		Expired:    sub.Expired(now),
		Message:    subs.StatusMessage(sub, now),
	}
}

func (r *Router) subscribe(c *gin.Context) {
	sub, err := r.subscriptions.Subscribe(c.Request.Context(), credential(c), c.Param("group_id"))
	if err != nil {
		r.fail(c, accountStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, r.subscriptionView(sub))
}

func (r *Router) unsubscribe(c *gin.Context) {
	removed, err := r.subscriptions.Unsubscribe(c.Request.Context(), credential(c), c.Param("group_id"))
	if err != nil {
		r.fail(c, accountStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (r *Router) status(c *gin.Context) {
	st, err := r.subscriptions.Status(c.Request.Context(), credential(c))
	if err != nil {
		r.fail(c, accountStatus(err), err)
		return
	}

	resp := gin.H{
		"user_id": st.User.ID,
		"name":    st.User.Name,
		"message": st.Message,
	}
	if st.Subscription != nil {
		resp["subscription"] = r.subscriptionView(st.Subscription)
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) resetCallbackURLs(c *gin.Context) {
	report, err := r.maintenance.ResetCallbackURLs(c.Request.Context(), credential(c))
	if err != nil {
		r.fail(c, accountStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// requireAdmin gates operator routes on the caller's chat identity.
func (r *Router) requireAdmin(c *gin.Context) {
	if _, err := r.maintenance.Authorize(c.Request.Context(), credential(c)); err != nil {
		r.fail(c, accountStatus(err), err)
		return
	}
	c.Next()
}

type ignoreRequest struct {
	Ignored *bool `json:"ignored" binding:"required"`
}

func (r *Router) setIgnored(c *gin.Context) {
	var req ignoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		r.fail(c, http.StatusBadRequest, err)
		return
	}

	sub, err := r.subscriptions.SetIgnored(c.Request.Context(), c.Param("user_id"), *req.Ignored)
	if err != nil {
		r.fail(c, accountStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": sub.UserID, "ignored": sub.Ignored})
}

type altEmailRequest struct {
	Email string `json:"email" binding:"required"`
}

func (r *Router) addAltEmail(c *gin.Context) {
	var req altEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		r.fail(c, http.StatusBadRequest, err)
		return
	}

	if err := r.subscriptions.AddAltEmail(c.Request.Context(), c.Param("user_id"), req.Email); err != nil {
		r.fail(c, accountStatus(err), err)
		return
	}

	c.Status(http.StatusNoContent)
}

type extendRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Days   int    `json:"days"`
}

func (r *Router) extend(c *gin.Context) {
	secret := c.GetHeader(billingHdr)
	if r.billingSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(r.billingSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		r.fail(c, http.StatusBadRequest, err)
		return
	}
	if req.Days == 0 {
		req.Days = subs.PaymentDays
	}

	sub, err := r.subscriptions.Extend(c.Request.Context(), req.UserID, req.Days)
	if err != nil {
		r.fail(c, accountStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, r.subscriptionView(sub))
}

func (r *Router) fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": publicMessage(status, err)})
}

func credential(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(credentialHdr)); token != "" {
		return token
	}
	return strings.TrimSpace(c.Query(credentialQuery))
}
