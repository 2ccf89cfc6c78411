// Package rest exposes the matchmaking, decision and poll endpoints over
// HTTP. Expected game-level failures are returned as 200 responses carrying
// a tagged body; only corrupt sessions surface as 500s.
package rest

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/cerke-online/backend/internal/game/bot"
	"github.com/cerke-online/backend/internal/game/domain"
	"github.com/cerke-online/backend/internal/game/match"
	"github.com/cerke-online/backend/internal/game/registry"
	"github.com/cerke-online/backend/internal/game/session"
	"github.com/cerke-online/backend/internal/platform/apperr"
	"github.com/cerke-online/backend/internal/platform/metrics"
)

// Handler carries the endpoint dependencies.
type Handler struct {
	log     *slog.Logger
	reg     *registry.Registry
	random  *match.Matchmaker
	staging *match.Matchmaker
	bot     *bot.Bot

	visits atomic.Int64
}

// NewHandler wires the endpoints. random and staging are independent waiting
// pools over the same registry.
func NewHandler(log *slog.Logger, reg *registry.Registry, random, staging *match.Matchmaker, b *bot.Bot) *Handler {
	return &Handler{
		log:     log,
		reg:     reg,
		random:  random,
		staging: staging,
		bot:     b,
	}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.index)

	m := r.Group("/matching")
	m.POST("/random/entry", h.entry(h.random))
	m.POST("/random/entry/staging", h.entry(h.staging))
	m.POST("/random/poll", h.matchPoll(h.random))
	m.POST("/random/poll/staging", h.matchPoll(h.staging))
	m.POST("/random/cancel", h.matchCancel(h.random))
	m.POST("/random/cancel/staging", h.matchCancel(h.staging))
	m.POST("/vs_cpu/entry", h.entryVsCpu(h.random))
	m.POST("/vs_cpu/entry/staging", h.entryVsCpu(h.staging))

	d := r.Group("/decision")
	d.POST("/main", h.decisionMain)
	d.POST("/afterhalfacceptance", h.decisionAfterHalfAcceptance)
	d.POST("/tymok", h.decisionTyMok)
	d.POST("/taxot", h.decisionTaXot)

	p := r.Group("/poll")
	p.POST("/main", h.pollMain)
	p.POST("/inf", h.pollInf)
	p.POST("/whethertymok", h.pollWhetherTyMok)
}

func (h *Handler) index(c *gin.Context) {
	n := h.visits.Add(1)
	metrics.Visits.Inc()
	c.String(http.StatusOK, "cerke backend is alive (visit %d)", n)
}

// authenticate resolves the bearer token on decision and poll routes.
func (h *Handler) authenticate(c *gin.Context) (registry.Perspective, *session.Session, error) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return registry.Perspective{}, nil, apperr.New(apperr.CodeBadCredential, "missing bearer token")
	}
	token := strings.TrimSpace(raw)
	p, sess, err := h.reg.ResolveToken(token)
	if apperr.CodeOf(err) == apperr.CodeUnknownCredential {
		if h.random.IsWaiting(token) || h.staging.IsWaiting(token) {
			return registry.Perspective{}, nil, apperr.New(apperr.CodeNotInRoom, "the access token is still waiting for an opponent")
		}
	}
	if err == nil {
		c.Set(roomKey, p.Room.String())
	}
	return p, sess, err
}

// roomKey carries the resolved room id on the request context for error logs.
const roomKey = "room"

// replyDecisionError renders a failed decision. Expected failures keep the
// 200-with-body contract.
func (h *Handler) replyDecisionError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	if code.Expected() {
		c.JSON(code.HTTPStatus(), decisionReply{Legal: false, WhyIllegal: err.Error()})
		return
	}
	h.log.Error("session beyond repair", "room", c.GetString(roomKey), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// replyPollError renders a failed poll.
func (h *Handler) replyPollError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	if code.Expected() {
		c.JSON(code.HTTPStatus(), gin.H{"type": typeErr, "reason": err.Error()})
		return
	}
	h.log.Error("session beyond repair", "room", c.GetString(roomKey), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (h *Handler) entry(m *match.Matchmaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := m.Entry()
		if result.Assigned == nil {
			h.log.Info("player parked in waiting pool", "token", result.Token)
			c.JSON(http.StatusOK, matchingReply{
				Type:        typeInWaitingList,
				AccessToken: result.Token.String(),
			})
			return
		}
		metrics.RoomsOpened.WithLabelValues("random").Inc()
		h.log.Info("room formed", "room", result.Assigned.Perspective.Room)
		c.JSON(http.StatusOK, assignedReply(typeLetTheGameBegin, result.Token.String(), result.Assigned))
	}
}

func (h *Handler) entryVsCpu(m *match.Matchmaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := m.EntryVsCpu()
		metrics.RoomsOpened.WithLabelValues("vs_cpu").Inc()
		h.log.Info("bot room formed", "room", result.Assigned.Perspective.Room)
		c.JSON(http.StatusOK, assignedReply(typeLetTheGameBegin, result.Token.String(), result.Assigned))
	}
}

func assignedReply(replyType, token string, a *match.Assignment) matchingReply {
	firstMove := a.FirstMove
	iaDown := a.Perspective.IADown
	return matchingReply{
		Type:              replyType,
		AccessToken:       token,
		IsFirstMoveMyMove: &firstMove,
		IsIADownForMe:     &iaDown,
	}
}

func (h *Handler) matchPoll(m *match.Matchmaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body tokenBody
		if err := c.ShouldBindJSON(&body); err != nil {
			h.replyPollError(c, apperr.Wrap(apperr.CodeBadCredential, "malformed request body", err))
			return
		}
		result, err := m.Poll(body.AccessToken)
		if err != nil {
			h.replyPollError(c, err)
			return
		}
		if result.Waiting {
			c.JSON(http.StatusOK, matchingReply{Type: typeInWaitingList, AccessToken: body.AccessToken})
			return
		}
		c.JSON(http.StatusOK, assignedReply(typeRoomAlreadyAssigned, body.AccessToken, result.Assigned))
	}
}

func (h *Handler) matchCancel(m *match.Matchmaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body tokenBody
		if err := c.ShouldBindJSON(&body); err != nil {
			h.replyPollError(c, apperr.Wrap(apperr.CodeBadCredential, "malformed request body", err))
			return
		}
		cancellable, err := m.Cancel(body.AccessToken)
		if err != nil {
			h.replyPollError(c, err)
			return
		}
		c.JSON(http.StatusOK, cancelReply{Cancellable: cancellable})
	}
}

func (h *Handler) decisionMain(c *gin.Context) {
	p, sess, err := h.authenticate(c)
	if err != nil {
		h.replyDecisionError(c, err)
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.replyDecisionError(c, apperr.Wrap(apperr.CodeRulesViolation, "unreadable request body", err))
		return
	}
	mv, err := decodeMainMessage(raw)
	if err != nil {
		h.replyDecisionError(c, apperr.Wrap(apperr.CodeRulesViolation, err.Error(), err))
		return
	}

	side := domain.SideFromIADown(p.IADown)
	if stepping, ok := mv.(domain.SteppingMove); ok {
		out, err := sess.BeginSteppingMove(side, stepping)
		if err != nil {
			h.replyDecisionError(c, err)
			return
		}
		metrics.MovesCommitted.WithLabelValues(string(mv.Kind())).Inc()
		c.JSON(http.StatusOK, decisionReply{Legal: true, SteppingCiurl: out.Stepping})
		return
	}

	out, err := sess.ApplySimpleMove(side, mv)
	if err != nil {
		h.replyDecisionError(c, err)
		return
	}
	metrics.MovesCommitted.WithLabelValues(string(mv.Kind())).Inc()

	if err := h.standResolved(sess, p); err != nil {
		h.replyDecisionError(c, err)
		return
	}
	c.JSON(http.StatusOK, decisionReply{Legal: true, WaterEntryCiurl: out.WaterEntry})
}

func (h *Handler) decisionAfterHalfAcceptance(c *gin.Context) {
	p, sess, err := h.authenticate(c)
	if err != nil {
		h.replyDecisionError(c, err)
		return
	}

	var body halfAcceptanceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.replyDecisionError(c, apperr.Wrap(apperr.CodeRulesViolation, "malformed request body", err))
		return
	}

	out, err := sess.ResolveHalfAcceptance(domain.SideFromIADown(p.IADown), body.Dest)
	if err != nil {
		h.replyDecisionError(c, err)
		return
	}
	if err := h.standResolved(sess, p); err != nil {
		h.replyDecisionError(c, err)
		return
	}
	c.JSON(http.StatusOK, decisionReply{Legal: true, WaterEntryCiurl: out.WaterEntry})
}

// standResolved classifies the position behind a freshly committed move so
// the session either advances or starts owing a hand decision.
func (h *Handler) standResolved(sess *session.Session, p registry.Perspective) error {
	out, err := sess.ResolveHand()
	if err != nil {
		return err
	}
	if out.Kind == session.HandGameEnd {
		metrics.GamesEnded.Inc()
		h.log.Info("game ended", "room", p.Room, "victor", victorLabel(out.Victor))
	}
	return nil
}

func victorLabel(victor *domain.Side) string {
	if victor == nil {
		return "draw"
	}
	return victor.String()
}

func (h *Handler) decisionTyMok(c *gin.Context) {
	p, sess, err := h.authenticate(c)
	if err != nil {
		h.replyDecisionError(c, err)
		return
	}
	if err := sess.AcceptAsIs(domain.SideFromIADown(p.IADown)); err != nil {
		h.replyDecisionError(c, err)
		return
	}
	c.JSON(http.StatusOK, decisionReply{Legal: true})
}

func (h *Handler) decisionTaXot(c *gin.Context) {
	p, sess, err := h.authenticate(c)
	if err != nil {
		h.replyDecisionError(c, err)
		return
	}
	out, err := sess.DemandNewSeason(domain.SideFromIADown(p.IADown))
	if err != nil {
		h.replyDecisionError(c, err)
		return
	}
	if out.GameEnded {
		metrics.GamesEnded.Inc()
		h.log.Info("game ended", "room", p.Room, "victor", victorLabel(out.Victor))
	}
	c.JSON(http.StatusOK, decisionReply{Legal: true})
}

func (h *Handler) pollMain(c *gin.Context) {
	p, sess, err := h.authenticate(c)
	if err != nil {
		h.replyPollError(c, err)
		return
	}
	side := domain.SideFromIADown(p.IADown)

	// An in-flight stepping move is returned as is; the client follows up
	// on /poll/inf for the final result.
	if rec, ok := sess.LastRecord(sess.Season()); ok && rec.Mover != side {
		h.replyMoveMade(c, rec)
		return
	}

	if h.reg.IsBotRoom(p.Room) {
		botSide := side.Opponent()
		wasEnded, _ := sess.Ended()
		if err := h.bot.Play(sess, botSide); err != nil {
			// A concurrent poll already played the move for us.
			if apperr.CodeOf(err) != apperr.CodeWrongPhase {
				h.replyPollError(c, err)
				return
			}
		}
		if nowEnded, _ := sess.Ended(); nowEnded && !wasEnded {
			metrics.GamesEnded.Inc()
		}
		if rec, ok := sess.LastRecord(sess.Season()); ok && rec.Mover == botSide {
			metrics.BotMoves.Inc()
			h.replyMoveMade(c, rec)
			return
		}
	}

	c.JSON(http.StatusOK, mainPollReply{Type: typeNotYetDetermined})
}

func (h *Handler) replyMoveMade(c *gin.Context, rec domain.MoveRecord) {
	msg, err := encodeRecord(rec)
	if err != nil {
		h.replyPollError(c, apperr.Wrap(apperr.CodeCorruptSession, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, mainPollReply{Type: typeMoveMade, Message: msg})
}

func (h *Handler) pollInf(c *gin.Context) {
	p, sess, err := h.authenticate(c)
	if err != nil {
		h.replyPollError(c, err)
		return
	}
	side := domain.SideFromIADown(p.IADown)

	rec, ok := sess.LastRecord(sess.Season())
	if !ok {
		h.replyPollError(c, apperr.New(apperr.CodeWrongPhase, "no move to poll"))
		return
	}
	if _, isStepping := rec.Move.(domain.SteppingMove); !isStepping {
		h.replyPollError(c, apperr.New(apperr.CodeWrongPhase, "the last move is not a stepping move"))
		return
	}
	if rec.Mover == side {
		h.replyPollError(c, apperr.New(apperr.CodeWrongPhase, "the stepping move is your own"))
		return
	}

	if rec.FinalResult == nil {
		c.JSON(http.StatusOK, infPollReply{Type: typeNotYetDetermined, SteppingCiurl: rec.SteppingTrial})
		return
	}
	c.JSON(http.StatusOK, infPollReply{
		Type:          typeFinalResult,
		SteppingCiurl: rec.SteppingTrial,
		FinalResult: &finalResultMessage{
			Dest:            rec.FinalResult.Dest,
			WaterEntryCiurl: rec.FinalResult.WaterEntry,
			Thwarted:        rec.FinalResult.Thwarted,
		},
	})
}

func (h *Handler) pollWhetherTyMok(c *gin.Context) {
	p, sess, err := h.authenticate(c)
	if err != nil {
		h.replyPollError(c, err)
		return
	}
	season := sess.Season()

	if rec, ok := sess.LastRecord(season); ok {
		switch rec.Status {
		case domain.StatusTyMok:
			c.JSON(http.StatusOK, whetherTyMokReply{Type: typeTyMok})
		case domain.StatusTaXot:
			// A TaXot that did not open a new season ended the game.
			c.JSON(http.StatusOK, whetherTyMokReply{Type: typeTaXot})
		default:
			c.JSON(http.StatusOK, whetherTyMokReply{Type: typeNotYetDetermined})
		}
		return
	}

	// A fresh season's still-empty ledger means the decision that opened it
	// sits at the end of the previous season. Once a move lands in the new
	// season the branch above takes over again.
	if season > 0 {
		if rec, ok := sess.LastRecord(season - 1); ok && rec.Status == domain.StatusTaXot {
			d, _ := sess.FirstMover(p.IADown, season)
			c.JSON(http.StatusOK, whetherTyMokReply{Type: typeTaXot, IsFirstMoveMyMove: &d})
			return
		}
	}

	c.JSON(http.StatusOK, whetherTyMokReply{Type: typeNotYetDetermined})
}
