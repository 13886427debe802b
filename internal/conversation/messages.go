package conversation

import (
	"fmt"
	"strings"

	"github.com/warrantykeeper/warranty-server-go/internal/dateparse"
	"github.com/warrantykeeper/warranty-server-go/internal/gateway"
	"github.com/warrantykeeper/warranty-server-go/internal/model"
)

// Main menu labels double as commands: the text router matches them exactly,
// and product names equal to one of them are rejected.
const (
	LabelAddProduct = "📦 Add product"
	LabelMyProducts = "📋 My products"
	LabelCancel     = "↩️ Cancel"
)

// Callback action tokens. Product selection uses the edit_ prefix followed
// by the product id; the fixed tokens are matched exactly and checked first.
const (
	actionEditPrefix    = "edit_"
	ActionEditName      = "edit_name"
	ActionEditDate      = "edit_date"
	ActionDeleteProduct = "delete_product"
	ActionConfirmDelete = "confirm_delete"
	ActionCancelDelete  = "cancel_delete"
	ActionBackToList    = "back_to_list"
)

const (
	msgWelcome = "Hi! I track your product warranties so you never miss a return window.\n" +
		"I will remind you 30, 14, 7 and 1 day(s) ahead, and on the final day.\n\n" +
		"Pick an action from the menu below 👇"

	msgUseMenu = "Use the menu buttons to navigate"

	msgPromptName    = "📝 Enter the product name:"
	msgPromptDate    = "📅 Enter the warranty end date as DD.MM.YY:\n\nFor example: 30.12.25"
	msgPromptNewName = "✏️ Enter the new product name:"
	msgPromptNewDate = "📅 Enter the new warranty end date (DD.MM.YY):"

	msgNameReserved = "❌ Menu commands cannot be used as a product name!\n\nTry another one:"
	msgBadDate      = "❌ Invalid date format! Use DD.MM.YYYY or DD.MM.YY\n\nTry again:"
	msgPastDate     = "❌ The date must be in the future!\n\nEnter a valid date:"

	msgAddCancelled      = "❌ Adding the product was cancelled."
	msgEditNameCancelled = "❌ Name change cancelled."
	msgEditDateCancelled = "❌ Date change cancelled."

	msgNoProducts = "📭 You have no tracked products yet.\n\nPress \"" +
		LabelAddProduct + "\" to add your first one."

	msgProductNotFound = "❌ Product not found."
	msgGenericFailure  = "❌ Something went wrong. Please try again."
)

const buttonNameMaxRunes = 30

func mainMenu() *gateway.Controls {
	return &gateway.Controls{
		Menu: [][]string{{LabelAddProduct, LabelMyProducts}},
	}
}

func cancelMenu() *gateway.Controls {
	return &gateway.Controls{
		Menu: [][]string{{LabelCancel}},
	}
}

func editMenuControls() *gateway.Controls {
	return &gateway.Controls{
		Inline: [][]gateway.Button{
			{{Label: "✏️ Change name", Action: ActionEditName}},
			{{Label: "📅 Change warranty date", Action: ActionEditDate}},
			{{Label: "🗑️ Delete product", Action: ActionDeleteProduct}},
			{{Label: "↩️ Back to list", Action: ActionBackToList}},
		},
	}
}

func confirmDeleteControls() *gateway.Controls {
	return &gateway.Controls{
		Inline: [][]gateway.Button{
			{
				{Label: "✅ Yes, delete", Action: ActionConfirmDelete},
				{Label: "❌ No, keep it", Action: ActionCancelDelete},
			},
		},
	}
}

// statusLine is the urgency marker shown in the product list. Nothing is
// shown for comfortably distant dates.
func statusLine(daysLeft int) string {
	switch {
	case daysLeft < 0:
		return "❌ Expired"
	case daysLeft == 0:
		return "⚠️ Ends today"
	case daysLeft <= 7:
		return "🔥 Urgent"
	case daysLeft <= 30:
		return "⚠️ Ending soon"
	default:
		return ""
	}
}

// editMenuStatusLine omits the ends-today rung: the menu's days-left line
// already says 0.
func editMenuStatusLine(daysLeft int) string {
	switch {
	case daysLeft < 0:
		return "❌ Expired"
	case daysLeft <= 7:
		return "🔥 Urgent"
	case daysLeft <= 30:
		return "⚠️ Ending soon"
	default:
		return ""
	}
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= buttonNameMaxRunes {
		return name
	}
	return string(runes[:buttonNameMaxRunes]) + "..."
}

func renderProductList(products []model.Product, daysLeft func(model.Product) int) (string, *gateway.Controls) {
	var b strings.Builder
	b.WriteString("📋 Your products:\n\n")

	var rows [][]gateway.Button
	for _, p := range products {
		left := daysLeft(p)

		fmt.Fprintf(&b, "📦 %s\n", p.Name)
		fmt.Fprintf(&b, "📅 Until: %s\n", dateparse.Format(p.WarrantyDate))
		fmt.Fprintf(&b, "⏳ Days left: %d\n", left)
		if status := statusLine(left); status != "" {
			fmt.Fprintf(&b, "📊 %s\n", status)
		}
		b.WriteString("\n")

		rows = append(rows, []gateway.Button{{
			Label:  "✏️ " + truncateName(p.Name),
			Action: actionEditPrefix + p.ID,
		}})
	}

	return b.String(), &gateway.Controls{Inline: rows}
}

func renderEditMenu(p *model.Product, daysLeft int) string {
	var b strings.Builder
	b.WriteString("✏️ Manage product:\n\n")
	fmt.Fprintf(&b, "📦 %s\n", p.Name)
	fmt.Fprintf(&b, "📅 Warranty until: %s\n", dateparse.Format(p.WarrantyDate))
	fmt.Fprintf(&b, "⏳ Days left: %d\n", daysLeft)
	if status := editMenuStatusLine(daysLeft); status != "" {
		fmt.Fprintf(&b, "📊 Status: %s\n", status)
	}
	b.WriteString("\nChoose an action:")
	return b.String()
}

func renderAddConfirmation(name string, warrantyDate string, daysLeft int) string {
	return fmt.Sprintf(
		"✅ Product added!\n\n📦 Name: %s\n📅 Warranty until: %s\n⏳ Days left: %d\n\n"+
			"I will remind you before the warranty runs out!",
		name, warrantyDate, daysLeft,
	)
}

func renderDeleteConfirmPrompt(name string) string {
	return fmt.Sprintf(
		"🗑️ Confirm deletion\n\nAre you sure you want to delete this product?\n\n📦 %s",
		name,
	)
}

func renderDeleted(name string) string {
	return fmt.Sprintf("✅ Product deleted!\n\n📦 %s\n\nNo longer tracked.", name)
}
