package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/warrantykeeper/warranty-server-go/internal/gateway"
	"github.com/warrantykeeper/warranty-server-go/internal/model"
)

// Mock product repository
type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, params model.CreateProductParams) (*model.Product, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *mockProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *mockProductRepo) FindByOwner(ctx context.Context, ownerID string) ([]model.Product, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *mockProductRepo) FindActive(ctx context.Context, asOf time.Time) ([]model.Product, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *mockProductRepo) UpdateName(ctx context.Context, id, name string) error {
	args := m.Called(ctx, id, name)
	return args.Error(0)
}

func (m *mockProductRepo) UpdateWarrantyDate(ctx context.Context, id string, date time.Time) error {
	args := m.Called(ctx, id, date)
	return args.Error(0)
}

func (m *mockProductRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock gateway that records every outgoing message
type mockGateway struct {
	mock.Mock
	sent   []sentMessage
	edited []sentMessage
}

type sentMessage struct {
	text     string
	controls *gateway.Controls
}

func (m *mockGateway) SendText(ctx context.Context, userID, text string, controls *gateway.Controls) (gateway.MessageRef, error) {
	args := m.Called(ctx, userID, text, controls)
	m.sent = append(m.sent, sentMessage{text: text, controls: controls})
	return args.Get(0).(gateway.MessageRef), args.Error(1)
}

func (m *mockGateway) EditMessage(ctx context.Context, ref gateway.MessageRef, text string, controls *gateway.Controls) error {
	args := m.Called(ctx, ref, text, controls)
	m.edited = append(m.edited, sentMessage{text: text, controls: controls})
	return args.Error(0)
}

func (m *mockGateway) DeleteMessage(ctx context.Context, ref gateway.MessageRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *mockGateway) lastSent(t *testing.T) sentMessage {
	t.Helper()
	if len(m.sent) == 0 {
		t.Fatal("no message sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockGateway) lastEdited(t *testing.T) sentMessage {
	t.Helper()
	if len(m.edited) == 0 {
		t.Fatal("no message edited")
	}
	return m.edited[len(m.edited)-1]
}

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestEngine(repo *mockProductRepo, gw *mockGateway) *Engine {
	e := NewEngine(repo, gw)
	e.now = func() time.Time { return testNow }
	return e
}

func TestEngine_AddFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("adds product through the full flow", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleText(ctx, "user-1", LabelAddProduct)
		assert.Equal(t, msgPromptName, gw.lastSent(t).text)

		e.HandleText(ctx, "user-1", "Laptop")
		assert.Equal(t, msgPromptDate, gw.lastSent(t).text)

		warrantyDate := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		created := &model.Product{
			ID:           "p-1",
			OwnerID:      "user-1",
			Name:         "Laptop",
			WarrantyDate: warrantyDate,
		}
		repo.On("Create", ctx, mock.MatchedBy(func(p model.CreateProductParams) bool {
			return p.OwnerID == "user-1" && p.Name == "Laptop" && p.WarrantyDate.Equal(warrantyDate)
		})).Return(created, nil)

		e.HandleText(ctx, "user-1", "01.01.30")

		last := gw.lastSent(t)
		assert.Contains(t, last.text, "Product added")
		assert.Contains(t, last.text, "Laptop")
		assert.Contains(t, last.text, "01.01.2030")
		assert.Equal(t, mainMenu(), last.controls)
		repo.AssertExpectations(t)

		// back to idle
		e.HandleText(ctx, "user-1", "hello")
		assert.Equal(t, msgUseMenu, gw.lastSent(t).text)
	})

	t.Run("short date input is expanded to the 21st century", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleText(ctx, "user-1", LabelAddProduct)
		e.HandleText(ctx, "user-1", "Phone")

		expected := time.Date(2025, 12, 30, 0, 0, 0, 0, time.UTC)
		repo.On("Create", ctx, mock.MatchedBy(func(p model.CreateProductParams) bool {
			return p.WarrantyDate.Equal(expected)
		})).Return(&model.Product{ID: "p-2", Name: "Phone", WarrantyDate: expected}, nil)

		e.HandleText(ctx, "user-1", "30.12.25")
		repo.AssertExpectations(t)
	})

	t.Run("rejects menu labels as product names", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleText(ctx, "user-1", LabelAddProduct)
		e.HandleText(ctx, "user-1", LabelMyProducts)
		assert.Equal(t, msgNameReserved, gw.lastSent(t).text)

		// still waiting for a name
		e.HandleText(ctx, "user-1", "Laptop")
		assert.Equal(t, msgPromptDate, gw.lastSent(t).text)
	})

	t.Run("reprompts on malformed and past dates", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleText(ctx, "user-1", LabelAddProduct)
		e.HandleText(ctx, "user-1", "Laptop")

		e.HandleText(ctx, "user-1", "2030.01.01")
		assert.Equal(t, msgBadDate, gw.lastSent(t).text)

		e.HandleText(ctx, "user-1", "31.02.2030")
		assert.Equal(t, msgBadDate, gw.lastSent(t).text)

		e.HandleText(ctx, "user-1", "01.01.2020")
		assert.Equal(t, msgPastDate, gw.lastSent(t).text)

		// today is not in the future either
		e.HandleText(ctx, "user-1", "15.06.2025")
		assert.Equal(t, msgPastDate, gw.lastSent(t).text)
	})

	t.Run("cancel abandons the flow without saving", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleText(ctx, "user-1", LabelAddProduct)
		e.HandleText(ctx, "user-1", "Laptop")
		e.HandleText(ctx, "user-1", LabelCancel)

		last := gw.lastSent(t)
		assert.Equal(t, msgAddCancelled, last.text)
		assert.Equal(t, mainMenu(), last.controls)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("start command does not disturb an in-flight flow", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleText(ctx, "user-1", LabelAddProduct)
		e.HandleText(ctx, "user-1", "/start")
		assert.Equal(t, msgWelcome, gw.lastSent(t).text)

		// the name prompt is still live
		e.HandleText(ctx, "user-1", "Laptop")
		assert.Equal(t, msgPromptDate, gw.lastSent(t).text)
	})

	t.Run("storage failure resets the session", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleText(ctx, "user-1", LabelAddProduct)
		e.HandleText(ctx, "user-1", "Laptop")

		repo.On("Create", ctx, mock.Anything).Return(nil, assert.AnError)
		e.HandleText(ctx, "user-1", "01.01.30")
		assert.Equal(t, msgGenericFailure, gw.lastSent(t).text)

		// next date-shaped input is handled as idle text, not a retry
		e.HandleText(ctx, "user-1", "02.01.30")
		assert.Equal(t, msgUseMenu, gw.lastSent(t).text)
	})
}

func TestEngine_ProductList(t *testing.T) {
	ctx := context.Background()

	t.Run("empty list suggests adding a product", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		repo.On("FindByOwner", ctx, "user-1").Return([]model.Product{}, nil)
		gw.On("SendText", ctx, "user-1", msgNoProducts, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleText(ctx, "user-1", LabelMyProducts)
		gw.AssertExpectations(t)
	})

	t.Run("renders products with status and edit buttons", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		products := []model.Product{
			{ID: "p-1", Name: "Old phone", WarrantyDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "p-2", Name: "Laptop", WarrantyDate: time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)},
			{ID: "p-3", Name: "Fridge", WarrantyDate: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		}
		repo.On("FindByOwner", ctx, "user-1").Return(products, nil)
		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleText(ctx, "user-1", LabelMyProducts)

		last := gw.lastSent(t)
		assert.Contains(t, last.text, "Old phone")
		assert.Contains(t, last.text, "Expired")
		assert.Contains(t, last.text, "Urgent")
		assert.Contains(t, last.text, "Fridge")
		assert.NotContains(t, strings.SplitAfter(last.text, "Fridge")[1], "📊")

		assert.Len(t, last.controls.Inline, 3)
		assert.Equal(t, actionEditPrefix+"p-1", last.controls.Inline[0][0].Action)
		assert.Equal(t, actionEditPrefix+"p-3", last.controls.Inline[2][0].Action)
	})

	t.Run("long product names are truncated on buttons only", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		longName := strings.Repeat("x", 40)
		repo.On("FindByOwner", ctx, "user-1").Return([]model.Product{
			{ID: "p-1", Name: longName, WarrantyDate: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		}, nil)
		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleText(ctx, "user-1", LabelMyProducts)

		last := gw.lastSent(t)
		assert.Contains(t, last.text, longName)
		assert.Equal(t, "✏️ "+strings.Repeat("x", 30)+"...", last.controls.Inline[0][0].Label)
	})
}

func TestEngine_EditFlow(t *testing.T) {
	ctx := context.Background()
	product := &model.Product{
		ID:           "p-1",
		OwnerID:      "user-1",
		Name:         "Laptop",
		WarrantyDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("selecting a product opens the edit menu in place", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		repo.On("FindByID", ctx, "p-1").Return(product, nil)
		gw.On("EditMessage", ctx, gateway.MessageRef("msg-1"), mock.Anything, mock.Anything).
			Return(nil)

		e.HandleCallback(ctx, "user-1", "edit_p-1", "msg-1")

		last := gw.lastEdited(t)
		assert.Contains(t, last.text, "Laptop")
		assert.Contains(t, last.text, "01.07.2025")
		assert.Contains(t, last.text, "Days left: 16")
		assert.Equal(t, editMenuControls(), last.controls)
	})

	t.Run("unknown product shows not found", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		repo.On("FindByID", ctx, "p-gone").Return(nil, nil)
		gw.On("EditMessage", ctx, gateway.MessageRef("msg-1"), msgProductNotFound, (*gateway.Controls)(nil)).
			Return(nil)

		e.HandleCallback(ctx, "user-1", "edit_p-gone", "msg-1")
		gw.AssertExpectations(t)
	})

	t.Run("renames the selected product", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		repo.On("FindByID", ctx, "p-1").Return(product, nil)
		gw.On("EditMessage", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-2"), nil)

		e.HandleCallback(ctx, "user-1", "edit_p-1", "msg-1")
		e.HandleCallback(ctx, "user-1", ActionEditName, "msg-1")
		prompt := gw.lastEdited(t)
		assert.Equal(t, msgPromptNewName, prompt.text)
		assert.Nil(t, prompt.controls)

		repo.On("UpdateName", ctx, "p-1", "Work laptop").Return(nil)
		e.HandleText(ctx, "user-1", "Work laptop")

		assert.Contains(t, gw.lastSent(t).text, "Name updated")
		repo.AssertExpectations(t)
	})

	t.Run("rename rejects menu labels and honors cancel", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		repo.On("FindByID", ctx, "p-1").Return(product, nil)
		gw.On("EditMessage", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-2"), nil)

		e.HandleCallback(ctx, "user-1", "edit_p-1", "msg-1")
		e.HandleCallback(ctx, "user-1", ActionEditName, "msg-1")

		e.HandleText(ctx, "user-1", LabelAddProduct)
		assert.Equal(t, msgNameReserved, gw.lastSent(t).text)

		e.HandleText(ctx, "user-1", LabelCancel)
		assert.Equal(t, msgEditNameCancelled, gw.lastSent(t).text)
		repo.AssertNotCalled(t, "UpdateName", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("changes the warranty date", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		repo.On("FindByID", ctx, "p-1").Return(product, nil)
		gw.On("EditMessage", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-2"), nil)

		e.HandleCallback(ctx, "user-1", "edit_p-1", "msg-1")
		e.HandleCallback(ctx, "user-1", ActionEditDate, "msg-1")
		assert.Equal(t, msgPromptNewDate, gw.lastEdited(t).text)

		newDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		repo.On("UpdateWarrantyDate", ctx, "p-1", newDate).Return(nil)
		e.HandleText(ctx, "user-1", "1.3.26")

		assert.Contains(t, gw.lastSent(t).text, "01.03.2026")
		repo.AssertExpectations(t)
	})

	t.Run("edit callbacks without a selected product reset to idle", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		gw.On("SendText", ctx, "user-1", msgProductNotFound, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleCallback(ctx, "user-1", ActionEditName, "msg-1")
		gw.AssertExpectations(t)
	})
}

func TestEngine_DeleteFlow(t *testing.T) {
	ctx := context.Background()
	product := &model.Product{
		ID:           "p-1",
		OwnerID:      "user-1",
		Name:         "Laptop",
		WarrantyDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	setup := func(repo *mockProductRepo, gw *mockGateway, e *Engine) {
		repo.On("FindByID", ctx, "p-1").Return(product, nil)
		gw.On("EditMessage", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		e.HandleCallback(ctx, "user-1", "edit_p-1", "msg-1")
		e.HandleCallback(ctx, "user-1", ActionDeleteProduct, "msg-1")
	}

	t.Run("delete asks for confirmation first", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		setup(repo, gw, e)

		last := gw.lastEdited(t)
		assert.Contains(t, last.text, "Confirm deletion")
		assert.Contains(t, last.text, "Laptop")
		assert.Equal(t, confirmDeleteControls(), last.controls)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("confirming removes the product and the prompt", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		setup(repo, gw, e)

		repo.On("Delete", ctx, "p-1").Return(nil)
		gw.On("DeleteMessage", ctx, gateway.MessageRef("msg-1")).Return(nil)
		gw.On("SendText", ctx, "user-1", mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-2"), nil)

		e.HandleCallback(ctx, "user-1", ActionConfirmDelete, "msg-1")

		last := gw.lastSent(t)
		assert.Contains(t, last.text, "Product deleted")
		assert.Equal(t, mainMenu(), last.controls)
		repo.AssertExpectations(t)
		gw.AssertExpectations(t)
	})

	t.Run("declining returns to the edit menu", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		setup(repo, gw, e)

		e.HandleCallback(ctx, "user-1", ActionCancelDelete, "msg-1")

		last := gw.lastEdited(t)
		assert.Contains(t, last.text, "Manage product")
		assert.Equal(t, editMenuControls(), last.controls)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("back to list re-renders the product list", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		repo.On("FindByID", ctx, "p-1").Return(product, nil)
		repo.On("FindByOwner", ctx, "user-1").Return([]model.Product{*product}, nil)
		gw.On("EditMessage", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		e.HandleCallback(ctx, "user-1", "edit_p-1", "msg-1")
		e.HandleCallback(ctx, "user-1", ActionBackToList, "msg-1")

		last := gw.lastEdited(t)
		assert.Contains(t, last.text, "Your products")
		assert.Len(t, last.controls.Inline, 1)
	})
}

func TestEngine_ConcurrentUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("sessions are independent per user", func(t *testing.T) {
		repo := new(mockProductRepo)
		gw := new(mockGateway)
		e := newTestEngine(repo, gw)

		gw.On("SendText", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(gateway.MessageRef("msg-1"), nil)

		e.HandleText(ctx, "user-1", LabelAddProduct)

		// a second user's text is idle chatter, not user-1's product name
		e.HandleText(ctx, "user-2", "Toaster")
		assert.Equal(t, msgUseMenu, gw.lastSent(t).text)

		e.HandleText(ctx, "user-1", "Toaster")
		assert.Equal(t, msgPromptDate, gw.lastSent(t).text)
	})
}
