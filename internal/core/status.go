package core

// Every status field in the schema has a typed constant set here and a single
// transition table. Services reject any transition the table does not list
// instead of checking status strings ad hoc at call sites.

// ── Documents ────────────────────────────────────────────────────────────────

type DocStatus string

const (
	DocDraft     DocStatus = "draft"
	DocPosted    DocStatus = "posted"
	DocCancelled DocStatus = "cancelled"
)

var docTransitions = map[DocStatus][]DocStatus{
	DocDraft:  {DocPosted},
	DocPosted: {DocCancelled},
	// cancelled is terminal
}

// CanTransitionDoc reports whether a document may move from one status to
// another. posted is item-immutable, cancelled fully immutable.
func CanTransitionDoc(from, to DocStatus) bool {
	for _, next := range docTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type DocType string

const (
	DocSale     DocType = "sale"
	DocPurchase DocType = "purchase"
)

// NumberPrefix is the document number prefix for this type ("SAL" / "PUR").
func (t DocType) NumberPrefix() string {
	if t == DocPurchase {
		return "PUR"
	}
	return "SAL"
}

// ── Phones (serialized stock) ────────────────────────────────────────────────

type PhoneStatus string

const (
	PhoneAvailable PhoneStatus = "available"
	PhoneSold      PhoneStatus = "sold"
	PhoneReturned  PhoneStatus = "returned"
	PhoneDamaged   PhoneStatus = "damaged"
	PhoneReserved  PhoneStatus = "reserved"
)

var phoneTransitions = map[PhoneStatus][]PhoneStatus{
	PhoneAvailable: {PhoneSold, PhoneReserved, PhoneDamaged},
	PhoneReserved:  {PhoneAvailable, PhoneSold},
	PhoneSold:      {PhoneReturned, PhoneAvailable}, // returned = kept for inspection; available = restocked directly
	PhoneReturned:  {PhoneAvailable, PhoneDamaged},
	PhoneDamaged:   {},
}

// CanTransitionPhone reports whether the serialized-item transition is legal.
func CanTransitionPhone(from, to PhoneStatus) bool {
	for _, next := range phoneTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ── Returns ──────────────────────────────────────────────────────────────────

type ReturnStatus string

const (
	ReturnPending   ReturnStatus = "pending"
	ReturnApproved  ReturnStatus = "approved"
	ReturnRejected  ReturnStatus = "rejected"
	ReturnRefunded  ReturnStatus = "refunded"
	ReturnCompleted ReturnStatus = "completed"
)

var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnPending:  {ReturnApproved, ReturnRejected},
	ReturnApproved: {ReturnRefunded},
	ReturnRefunded: {ReturnCompleted},
	// rejected and completed are terminal
}

// CanTransitionReturn reports whether a return may move between statuses.
// The pending stage cannot be skipped: stock and cash effects apply only at
// approval, after human review.
func CanTransitionReturn(from, to ReturnStatus) bool {
	for _, next := range returnTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ── Cash sessions ────────────────────────────────────────────────────────────

type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

type CashDirection string

const (
	CashIn  CashDirection = "in"
	CashOut CashDirection = "out"
)

type PayMethod string

const (
	MethodCash     PayMethod = "cash"
	MethodCard     PayMethod = "card"
	MethodTransfer PayMethod = "transfer"
)

type MovementType string

const (
	MovementSale     MovementType = "sale"
	MovementPurchase MovementType = "purchase"
	MovementExpense  MovementType = "expense"
	MovementRefund   MovementType = "refund"
)

// ── Roles ────────────────────────────────────────────────────────────────────

type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
)
