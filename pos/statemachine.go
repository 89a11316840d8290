/*
statemachine.go - Table-driven guard for cart mutations

PURPOSE:
  The state machine is the ONLY authority on whether an API operation is
  legal for a cart in its current state. Every façade operation names an
  Event; Guard answers with the resulting status or ErrInvalidCartState.
  Downstream engines (tax, payment) assume the event has been authorized.

TRANSITION TABLE:
  Initial       GET_CART (auto-advance to Idle)
  Idle          ADD_ITEM -> EnteringItem, CANCEL_CART -> Cancelled, GET_CART
  EnteringItem  item/discount mutations, CALC_SUBTOTAL -> Paying,
                CANCEL_CART -> Cancelled, GET_CART
  Paying        ADD_PAYMENT, RESUME_ITEM_ENTRY -> EnteringItem,
                BILL -> Completed, GET_CART
  Completed     GET_CART only
  Cancelled     GET_CART only

  Completed and Cancelled are terminal: no mutation ever leaves them.

SEE ALSO:
  - cart/service.go: Calls Guard before every mutation
*/
package pos

// Event names one API operation against a cart.
type Event string

const (
	EventAddItem         Event = "ADD_ITEM"
	EventCancelLine      Event = "CANCEL_LINE"
	EventUpdateQty       Event = "UPDATE_QTY"
	EventUpdatePrice     Event = "UPDATE_PRICE"
	EventAddLineDiscount Event = "ADD_LINE_DISCOUNT"
	EventAddCartDiscount Event = "ADD_CART_DISCOUNT"
	EventCalcSubtotal    Event = "CALC_SUBTOTAL"
	EventAddPayment      Event = "ADD_PAYMENT"
	EventBill            Event = "BILL"
	EventResumeItemEntry Event = "RESUME_ITEM_ENTRY"
	EventCancelCart      Event = "CANCEL_CART"
	EventGetCart         Event = "GET_CART"
)

// transitions maps state -> permitted event -> next state. An entry whose
// next state equals the current state is a pure guard (no transition).
var transitions = map[Status]map[Event]Status{
	StatusInitial: {
		EventGetCart: StatusIdle, // first access auto-advances
	},
	StatusIdle: {
		EventAddItem:    StatusEnteringItem,
		EventCancelCart: StatusCancelled,
		EventGetCart:    StatusIdle,
	},
	StatusEnteringItem: {
		EventAddItem:         StatusEnteringItem,
		EventCancelLine:      StatusEnteringItem,
		EventUpdateQty:       StatusEnteringItem,
		EventUpdatePrice:     StatusEnteringItem,
		EventAddLineDiscount: StatusEnteringItem,
		EventAddCartDiscount: StatusEnteringItem,
		EventCalcSubtotal:    StatusPaying,
		EventCancelCart:      StatusCancelled,
		EventGetCart:         StatusEnteringItem,
	},
	StatusPaying: {
		EventAddPayment:      StatusPaying,
		EventResumeItemEntry: StatusEnteringItem,
		EventBill:            StatusCompleted,
		EventGetCart:         StatusPaying,
	},
	StatusCompleted: {
		EventGetCart: StatusCompleted,
	},
	StatusCancelled: {
		EventGetCart: StatusCancelled,
	},
}

// Guard checks whether event is permitted for a cart in status and returns
// the status the cart moves to on success.
func Guard(status Status, event Event) (Status, error) {
	permitted, ok := transitions[status]
	if !ok {
		return status, ErrInvalidCartState.WithDetail("unknown state %q", status)
	}
	next, ok := permitted[event]
	if !ok {
		return status, ErrInvalidCartState.WithDetail("%s not permitted in %s", event, status)
	}
	return next, nil
}

// Permitted returns the events legal in the given state, for diagnostics.
func Permitted(status Status) []Event {
	var events []Event
	for e := range transitions[status] {
		events = append(events, e)
	}
	return events
}
