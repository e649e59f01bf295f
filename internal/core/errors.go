package core

import "fmt"

// ScanKind classifies a rejected scan or quantity entry.
type ScanKind string

const (
	NotFound        ScanKind = "not_found"
	NotInStockList  ScanKind = "not_in_stock_list"
	NoActiveItem    ScanKind = "no_active_item"
	InvalidQuantity ScanKind = "invalid_quantity"
)

// ScanError is a recoverable per-scan failure. The session is unchanged and
// the operator may keep scanning.
type ScanError struct {
	Kind  ScanKind
	Input string
	Code  string
}

func (e *ScanError) Error() string {
	switch e.Kind {
	case NotFound:
		return fmt.Sprintf("product not found: %q", e.Input)
	case NotInStockList:
		return fmt.Sprintf("product %s is not in the stock list", e.Code)
	case NoActiveItem:
		return "no product awaiting a quantity"
	case InvalidQuantity:
		return fmt.Sprintf("invalid quantity: %q", e.Input)
	default:
		return "scan rejected"
	}
}

// UserMessage implements coded.
func (e *ScanError) UserMessage() UserMessage {
	switch e.Kind {
	case NotFound:
		return UserMessage{
			Message: "Product not found in the product file",
			Action:  "Check the code or scan the barcode again",
			Code:    "SCN001",
		}
	case NotInStockList:
		return UserMessage{
			Message: "Product is not in the loaded stock list",
			Action:  "Items outside the stock list cannot be counted",
			Code:    "SCN002",
		}
	case NoActiveItem:
		return UserMessage{
			Message: "No product is waiting for a quantity",
			Action:  "Scan a product first",
			Code:    "SCN003",
		}
	default:
		return UserMessage{
			Message: "Quantity is not a valid number",
			Action:  "Enter a number of zero or more",
			Code:    "SCN004",
		}
	}
}

// GateKind classifies a refused workflow transition.
type GateKind string

const (
	PendingItemsRemain GateKind = "pending_items_remain"
	NothingToRecount   GateKind = "nothing_to_recount"
	RecountRequired    GateKind = "recount_required"
	WrongStep          GateKind = "wrong_step"
	NoSession          GateKind = "no_session"
)

// GateError means a transition was refused. The session is unchanged.
type GateError struct {
	Kind    GateKind
	Pending int  // Set for PendingItemsRemain
	Step    Step // Current step, set for WrongStep
}

func (e *GateError) Error() string {
	switch e.Kind {
	case PendingItemsRemain:
		return fmt.Sprintf("%d items are still pending", e.Pending)
	case NothingToRecount:
		return "no divergent items to recount"
	case RecountRequired:
		return "divergences found, a recount is required before finalizing"
	case WrongStep:
		return fmt.Sprintf("operation not allowed in step %q", e.Step)
	case NoSession:
		return "no active counting session"
	default:
		return "transition refused"
	}
}

// UserMessage implements coded.
func (e *GateError) UserMessage() UserMessage {
	switch e.Kind {
	case PendingItemsRemain:
		return UserMessage{
			Message: fmt.Sprintf("There are still %d items pending count", e.Pending),
			Action:  "Count every remaining item first",
			Code:    "GATE001",
		}
	case NothingToRecount:
		return UserMessage{
			Message: "There are no divergent items to recount",
			Action:  "Finalize the count",
			Code:    "GATE002",
		}
	case RecountRequired:
		return UserMessage{
			Message: "Divergences were found in the initial count",
			Action:  "Start and finish the recount of all divergences before finalizing",
			Code:    "GATE003",
		}
	case WrongStep:
		return UserMessage{
			Message: "This action is not available at the current step",
			Action:  "Refresh the session and try again",
			Code:    "GATE004",
		}
	default:
		return UserMessage{
			Message: "No active counting session",
			Action:  "Upload the product and stock files to start",
			Code:    "GATE005",
		}
	}
}

func requireStep(st State, allowed ...Step) error {
	for _, s := range allowed {
		if st.Step == s {
			return nil
		}
	}
	return &GateError{Kind: WrongStep, Step: st.Step}
}
