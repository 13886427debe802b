// Package conversation drives the per-user warranty dialogue: multi-step
// add/edit/delete flows keyed by conversation state, with replies delivered
// through the messaging gateway.
package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/warrantykeeper/warranty-server-go/internal/dateparse"
	"github.com/warrantykeeper/warranty-server-go/internal/gateway"
	"github.com/warrantykeeper/warranty-server-go/internal/model"
	"github.com/warrantykeeper/warranty-server-go/internal/repository"
)

// session is one user's in-flight dialogue. Sessions live for the lifetime
// of the process; state is reset to idle rather than removed from the map so
// a concurrent handler never holds a detached pointer.
type session struct {
	mu        sync.Mutex
	state     model.ConversationState
	draftName string
	targetID  string
}

func (s *session) reset() {
	s.state = model.StateIdle
	s.draftName = ""
	s.targetID = ""
}

// Engine routes incoming text and button events to the handler for the
// user's current state. Events from the same user are serialized on the
// session lock; different users proceed concurrently.
type Engine struct {
	products repository.ProductRepository
	gw       gateway.Gateway
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewEngine(products repository.ProductRepository, gw gateway.Gateway) *Engine {
	return &Engine{
		products: products,
		gw:       gw,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

func (e *Engine) session(userID string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[userID]
	if !ok {
		s = &session{state: model.StateIdle}
		e.sessions[userID] = s
	}
	return s
}

// HandleText processes a plain text message from a user.
func (e *Engine) HandleText(ctx context.Context, userID, text string) {
	s := e.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	text = strings.TrimSpace(text)

	// /start always replies with the welcome message and leaves any
	// in-flight flow untouched.
	if text == "/start" {
		e.send(ctx, userID, msgWelcome, mainMenu())
		return
	}

	switch s.state {
	case model.StateAddAwaitingName:
		e.handleAddName(ctx, s, userID, text)
	case model.StateAddAwaitingDate:
		e.handleAddDate(ctx, s, userID, text)
	case model.StateEditAwaitingName:
		e.handleEditName(ctx, s, userID, text)
	case model.StateEditAwaitingDate:
		e.handleEditDate(ctx, s, userID, text)
	default:
		// Idle, and text arriving while an inline menu is open: the
		// menu labels win over whatever the inline message offered.
		e.handleIdleText(ctx, s, userID, text)
	}
}

func (e *Engine) handleIdleText(ctx context.Context, s *session, userID, text string) {
	switch text {
	case LabelAddProduct:
		s.reset()
		s.state = model.StateAddAwaitingName
		e.send(ctx, userID, msgPromptName, cancelMenu())
	case LabelMyProducts:
		s.reset()
		e.sendProductList(ctx, userID)
	default:
		e.send(ctx, userID, msgUseMenu, mainMenu())
	}
}

func (e *Engine) handleAddName(ctx context.Context, s *session, userID, text string) {
	if text == LabelCancel {
		s.reset()
		e.send(ctx, userID, msgAddCancelled, mainMenu())
		return
	}
	if isReservedName(text) {
		e.send(ctx, userID, msgNameReserved, cancelMenu())
		return
	}

	s.draftName = text
	s.state = model.StateAddAwaitingDate
	e.send(ctx, userID, msgPromptDate, cancelMenu())
}

func (e *Engine) handleAddDate(ctx context.Context, s *session, userID, text string) {
	if text == LabelCancel {
		s.reset()
		e.send(ctx, userID, msgAddCancelled, mainMenu())
		return
	}

	date, err := dateparse.ParseFuture(text, e.now())
	if err != nil {
		e.send(ctx, userID, dateRejection(err), cancelMenu())
		return
	}

	p, err := e.products.Create(ctx, model.CreateProductParams{
		OwnerID:      userID,
		Name:         s.draftName,
		WarrantyDate: date,
	})
	if err != nil {
		e.fail(ctx, s, userID, err, "create product")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("product_id", p.ID).
		Str("warranty_date", dateparse.Format(p.WarrantyDate)).
		Msg("Product added")

	left := dateparse.DaysUntil(p.WarrantyDate, e.now())
	e.send(ctx, userID, renderAddConfirmation(p.Name, dateparse.Format(p.WarrantyDate), left), mainMenu())
	s.reset()
}

func (e *Engine) handleEditName(ctx context.Context, s *session, userID, text string) {
	if text == LabelCancel {
		s.reset()
		e.send(ctx, userID, msgEditNameCancelled, mainMenu())
		return
	}
	if isReservedName(text) {
		e.send(ctx, userID, msgNameReserved, cancelMenu())
		return
	}

	if err := e.products.UpdateName(ctx, s.targetID, text); err != nil {
		e.fail(ctx, s, userID, err, "update product name")
		return
	}

	e.send(ctx, userID, "✅ Name updated!\n\n📦 New name: "+text, mainMenu())
	s.reset()
}

func (e *Engine) handleEditDate(ctx context.Context, s *session, userID, text string) {
	if text == LabelCancel {
		s.reset()
		e.send(ctx, userID, msgEditDateCancelled, mainMenu())
		return
	}

	date, err := dateparse.ParseFuture(text, e.now())
	if err != nil {
		e.send(ctx, userID, dateRejection(err), cancelMenu())
		return
	}

	if err := e.products.UpdateWarrantyDate(ctx, s.targetID, date); err != nil {
		e.fail(ctx, s, userID, err, "update warranty date")
		return
	}

	left := dateparse.DaysUntil(date, e.now())
	e.send(ctx, userID,
		"✅ Warranty date updated!\n\n📅 New date: "+dateparse.Format(date)+
			"\n⏳ Days left: "+strconv.Itoa(left),
		mainMenu())
	s.reset()
}

// HandleCallback processes an inline button press. Fixed action tokens are
// matched before the edit_<id> product selector, whose prefix they share.
func (e *Engine) HandleCallback(ctx context.Context, userID, action string, messageRef gateway.MessageRef) {
	s := e.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch action {
	case ActionEditName:
		if !e.requireTarget(ctx, s, userID) {
			return
		}
		s.state = model.StateEditAwaitingName
		// replace the menu in place, dropping its inline keyboard for
		// the text input that follows
		e.edit(ctx, messageRef, msgPromptNewName, nil)
	case ActionEditDate:
		if !e.requireTarget(ctx, s, userID) {
			return
		}
		s.state = model.StateEditAwaitingDate
		e.edit(ctx, messageRef, msgPromptNewDate, nil)
	case ActionDeleteProduct:
		e.promptDelete(ctx, s, userID, messageRef)
	case ActionConfirmDelete:
		e.confirmDelete(ctx, s, userID, messageRef)
	case ActionCancelDelete:
		e.showEditMenu(ctx, s, userID, s.targetID, messageRef)
	case ActionBackToList:
		s.reset()
		e.editToProductList(ctx, userID, messageRef)
	default:
		if id, ok := strings.CutPrefix(action, actionEditPrefix); ok {
			e.showEditMenu(ctx, s, userID, id, messageRef)
			return
		}
		log.Warn().
			Str("user_id", userID).
			Str("action", action).
			Msg("Unknown callback action")
	}
}

// requireTarget guards callbacks that only make sense with a product
// selected. A stale button press after a restart lands here.
func (e *Engine) requireTarget(ctx context.Context, s *session, userID string) bool {
	if s.targetID != "" {
		return true
	}
	s.reset()
	e.send(ctx, userID, msgProductNotFound, mainMenu())
	return false
}

func (e *Engine) showEditMenu(ctx context.Context, s *session, userID, productID string, messageRef gateway.MessageRef) {
	if productID == "" {
		s.reset()
		e.edit(ctx, messageRef, msgProductNotFound, nil)
		return
	}

	p, err := e.products.FindByID(ctx, productID)
	if err != nil {
		e.fail(ctx, s, userID, err, "load product")
		return
	}
	if p == nil {
		s.reset()
		e.edit(ctx, messageRef, msgProductNotFound, nil)
		return
	}

	s.targetID = p.ID
	s.state = model.StateEditMenu
	left := dateparse.DaysUntil(p.WarrantyDate, e.now())
	e.edit(ctx, messageRef, renderEditMenu(p, left), editMenuControls())
}

func (e *Engine) promptDelete(ctx context.Context, s *session, userID string, messageRef gateway.MessageRef) {
	if !e.requireTarget(ctx, s, userID) {
		return
	}

	p, err := e.products.FindByID(ctx, s.targetID)
	if err != nil {
		e.fail(ctx, s, userID, err, "load product")
		return
	}
	if p == nil {
		s.reset()
		e.edit(ctx, messageRef, msgProductNotFound, nil)
		return
	}

	s.state = model.StateDeleteConfirm
	e.edit(ctx, messageRef, renderDeleteConfirmPrompt(p.Name), confirmDeleteControls())
}

func (e *Engine) confirmDelete(ctx context.Context, s *session, userID string, messageRef gateway.MessageRef) {
	if !e.requireTarget(ctx, s, userID) {
		return
	}

	p, err := e.products.FindByID(ctx, s.targetID)
	if err != nil {
		e.fail(ctx, s, userID, err, "load product")
		return
	}
	if p == nil {
		s.reset()
		e.edit(ctx, messageRef, msgProductNotFound, nil)
		return
	}

	if err := e.products.Delete(ctx, p.ID); err != nil {
		e.fail(ctx, s, userID, err, "delete product")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("product_id", p.ID).
		Msg("Product deleted")

	s.reset()
	e.delete(ctx, messageRef)
	e.send(ctx, userID, renderDeleted(p.Name), mainMenu())
}

func (e *Engine) sendProductList(ctx context.Context, userID string) {
	products, err := e.products.FindByOwner(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load product list")
		e.send(ctx, userID, msgGenericFailure, mainMenu())
		return
	}
	if len(products) == 0 {
		e.send(ctx, userID, msgNoProducts, mainMenu())
		return
	}

	text, controls := e.renderList(products)
	e.send(ctx, userID, text, controls)
}

func (e *Engine) editToProductList(ctx context.Context, userID string, messageRef gateway.MessageRef) {
	products, err := e.products.FindByOwner(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load product list")
		e.edit(ctx, messageRef, msgGenericFailure, nil)
		return
	}
	if len(products) == 0 {
		e.edit(ctx, messageRef, msgNoProducts, nil)
		return
	}

	text, controls := e.renderList(products)
	e.edit(ctx, messageRef, text, controls)
}

func (e *Engine) renderList(products []model.Product) (string, *gateway.Controls) {
	today := e.now()
	return renderProductList(products, func(p model.Product) int {
		return dateparse.DaysUntil(p.WarrantyDate, today)
	})
}

// fail logs the storage error, resets the session and tells the user to try
// again. The user never sees internals.
func (e *Engine) fail(ctx context.Context, s *session, userID string, err error, op string) {
	log.Error().Err(err).Str("user_id", userID).Msgf("Failed to %s", op)
	s.reset()
	e.send(ctx, userID, msgGenericFailure, mainMenu())
}

func (e *Engine) send(ctx context.Context, userID, text string, controls *gateway.Controls) {
	if _, err := e.gw.SendText(ctx, userID, text, controls); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send message")
	}
}

func (e *Engine) edit(ctx context.Context, ref gateway.MessageRef, text string, controls *gateway.Controls) {
	if err := e.gw.EditMessage(ctx, ref, text, controls); err != nil {
		log.Error().Err(err).Str("message_ref", string(ref)).Msg("Failed to edit message")
	}
}

// delete removes the inline message a flow no longer needs, like the delete
// confirmation prompt after the product is gone.
func (e *Engine) delete(ctx context.Context, ref gateway.MessageRef) {
	if err := e.gw.DeleteMessage(ctx, ref); err != nil {
		log.Error().Err(err).Str("message_ref", string(ref)).Msg("Failed to delete message")
	}
}

func isReservedName(text string) bool {
	switch text {
	case LabelAddProduct, LabelMyProducts, LabelCancel:
		return true
	}
	return false
}

func dateRejection(err error) string {
	if errors.Is(err, dateparse.ErrNotFuture) {
		return msgPastDate
	}
	return msgBadDate
}
