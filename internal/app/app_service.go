package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"shopledger/internal/ai"
	"shopledger/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type appService struct {
	users    core.UserService
	parties  core.PartyService
	stock    core.StockService
	docs     core.DocumentService
	balances core.BalanceService
	returns  core.ReturnService
	cash     core.CashService
	agent    *ai.Agent
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	users core.UserService,
	parties core.PartyService,
	stock core.StockService,
	docs core.DocumentService,
	balances core.BalanceService,
	returns core.ReturnService,
	cash core.CashService,
	agent *ai.Agent,
) ApplicationService {
	return &appService{
		users:    users,
		parties:  parties,
		stock:    stock,
		docs:     docs,
		balances: balances,
		returns:  returns,
		cash:     cash,
		agent:    agent,
	}
}

// ── Auth ─────────────────────────────────────────────────────────────────────

// AuthenticateUser verifies credentials against the stored bcrypt hash.
// Unknown usernames and wrong passwords produce the same error so the login
// endpoint cannot be used to probe for accounts.
func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", core.ErrUnauthorized)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("invalid credentials: %w", core.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", core.ErrUnauthorized)
	}
	return &UserSession{
		UserID:   user.ID,
		StoreID:  user.StoreID,
		Username: user.Username,
		Role:     string(user.Role),
	}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*UserResult, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	store, err := s.users.GetStore(ctx, user.StoreID)
	if err != nil {
		return nil, err
	}
	return &UserResult{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      string(user.Role),
		StoreCode: store.Code,
		StoreName: store.Name,
	}, nil
}

// ── Stock ────────────────────────────────────────────────────────────────────

func (s *appService) RegisterPhone(ctx context.Context, req RegisterPhoneRequest) (*PhoneResult, error) {
	initial := req.Initial
	if initial == "" {
		initial = core.PhoneAvailable
	}
	phone, err := s.stock.RegisterPhone(ctx, req.StoreID, req.IMEI, req.Model, req.BuyPrice, req.SellPrice, initial)
	if err != nil {
		return nil, err
	}
	return &PhoneResult{Phone: phone}, nil
}

func (s *appService) CreateAccessory(ctx context.Context, req CreateAccessoryRequest) (*AccessoryResult, error) {
	acc, err := s.stock.CreateAccessory(ctx, req.StoreID, req.SKU, req.Name,
		req.Quantity, req.MinQty, req.BuyPrice, req.SellPrice)
	if err != nil {
		return nil, err
	}
	return &AccessoryResult{Accessory: acc, LowStock: acc.LowStock()}, nil
}

func (s *appService) AdjustStock(ctx context.Context, actor core.Actor, sku string, delta int) (*AccessoryResult, error) {
	acc, err := s.stock.AdjustAccessoryStock(ctx, actor.StoreID, sku, delta)
	if err != nil {
		return nil, err
	}
	return &AccessoryResult{Accessory: acc, LowStock: acc.LowStock()}, nil
}

func (s *appService) TransitionPhone(ctx context.Context, actor core.Actor, imei string, to core.PhoneStatus) (*PhoneResult, error) {
	phone, err := s.stock.TransitionPhone(ctx, actor.StoreID, imei, to)
	if err != nil {
		return nil, err
	}
	return &PhoneResult{Phone: phone}, nil
}

func (s *appService) GetStockLevels(ctx context.Context, storeID int) (*StockLevelsResult, error) {
	levels, err := s.stock.GetStockLevels(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return &StockLevelsResult{Levels: levels, StoreID: storeID}, nil
}

// ── Documents ────────────────────────────────────────────────────────────────

func (s *appService) CreateDocument(ctx context.Context, actor core.Actor, req CreateDocumentRequest) (*DocumentResult, error) {
	doc, err := s.docs.CreateDocument(ctx, actor.StoreID, req.Type, actor, req.CounterpartyCode, req.DocDate)
	if err != nil {
		return nil, err
	}
	for _, item := range req.Items {
		doc, err = s.docs.AddItem(ctx, doc.ID, item)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", item.ProductCode, err)
		}
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) AddDocumentItem(ctx context.Context, documentID int, item core.ItemInput) (*DocumentResult, error) {
	doc, err := s.docs.AddItem(ctx, documentID, item)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) RemoveDocumentItem(ctx context.Context, documentID, itemID int) (*DocumentResult, error) {
	doc, err := s.docs.RemoveItem(ctx, documentID, itemID)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) PostDocument(ctx context.Context, documentID int) (*DocumentResult, error) {
	doc, err := s.docs.Post(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) CancelDocument(ctx context.Context, actor core.Actor, documentID int) (*DocumentResult, error) {
	doc, err := s.docs.Cancel(ctx, documentID, actor)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

// resolveDocument accepts a numeric ID or a document number.
func (s *appService) resolveDocument(ctx context.Context, storeID int, ref string) (*core.Document, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		return s.docs.GetDocument(ctx, id)
	}
	return s.docs.GetDocumentByNumber(ctx, storeID, strings.ToUpper(strings.TrimSpace(ref)))
}

func (s *appService) GetDocument(ctx context.Context, storeID int, ref string) (*DocumentResult, error) {
	doc, err := s.resolveDocument(ctx, storeID, ref)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) ListDocuments(ctx context.Context, storeID int, docType, status string) (*DocumentListResult, error) {
	var typeFilter *core.DocType
	if docType != "" {
		dt := core.DocType(docType)
		typeFilter = &dt
	}
	var statusFilter *core.DocStatus
	if status != "" {
		st := core.DocStatus(status)
		statusFilter = &st
	}
	docs, err := s.docs.GetDocuments(ctx, storeID, typeFilter, statusFilter)
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Documents: docs, StoreID: storeID}, nil
}

// ── Payments and balances ────────────────────────────────────────────────────

func (s *appService) RecordPayment(ctx context.Context, actor core.Actor, req RecordPaymentRequest) (*DocumentResult, error) {
	doc, err := s.resolveDocument(ctx, actor.StoreID, req.Ref)
	if err != nil {
		return nil, err
	}
	doc, err = s.balances.RecordPayment(ctx, doc.ID, req.Amount, req.Method, actor)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) CustomerBalances(ctx context.Context, storeID int) (*BalancesResult, error) {
	balances, err := s.balances.CustomerBalances(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return &BalancesResult{Balances: balances}, nil
}

func (s *appService) SupplierBalance(ctx context.Context, supplierID int) (*core.CounterpartyBalance, error) {
	return s.balances.SupplierBalance(ctx, supplierID)
}

func (s *appService) HighRiskCustomers(ctx context.Context, storeID int, threshold decimal.Decimal) (*RiskResult, error) {
	if !threshold.IsPositive() {
		threshold = core.DefaultRiskThreshold
	}
	risky, err := s.balances.HighRiskCustomers(ctx, storeID, threshold)
	if err != nil {
		return nil, err
	}
	return &RiskResult{Customers: risky, Threshold: threshold}, nil
}

// ── Returns ──────────────────────────────────────────────────────────────────

func (s *appService) CreateReturn(ctx context.Context, actor core.Actor, req CreateReturnRequest) (*ReturnResult, error) {
	sale, err := s.resolveDocument(ctx, actor.StoreID, req.SaleRef)
	if err != nil {
		return nil, err
	}
	ret, err := s.returns.Create(ctx, actor.StoreID, core.ReturnInput{
		SaleID:         sale.ID,
		DocumentItemID: req.DocumentItemID,
		Qty:            req.Qty,
		Reason:         req.Reason,
		Condition:      req.Condition,
		RefundAmount:   req.RefundAmount,
	}, actor)
	if err != nil {
		return nil, err
	}
	return &ReturnResult{Return: ret}, nil
}

func (s *appService) ApproveReturn(ctx context.Context, actor core.Actor, returnID int) (*ReturnResult, error) {
	ret, err := s.returns.Approve(ctx, returnID, actor)
	if err != nil {
		return nil, err
	}
	return &ReturnResult{Return: ret}, nil
}

func (s *appService) RejectReturn(ctx context.Context, actor core.Actor, returnID int, reason string) (*ReturnResult, error) {
	ret, err := s.returns.Reject(ctx, returnID, reason, actor)
	if err != nil {
		return nil, err
	}
	return &ReturnResult{Return: ret}, nil
}

func (s *appService) MarkReturnRefunded(ctx context.Context, returnID int, paymentRef string) (*ReturnResult, error) {
	ret, err := s.returns.MarkRefunded(ctx, returnID, paymentRef)
	if err != nil {
		return nil, err
	}
	return &ReturnResult{Return: ret}, nil
}

func (s *appService) CompleteReturn(ctx context.Context, returnID int) (*ReturnResult, error) {
	ret, err := s.returns.Complete(ctx, returnID)
	if err != nil {
		return nil, err
	}
	return &ReturnResult{Return: ret}, nil
}

func (s *appService) ListReturns(ctx context.Context, storeID int, status string) (*ReturnListResult, error) {
	var statusFilter *core.ReturnStatus
	if status != "" {
		st := core.ReturnStatus(status)
		statusFilter = &st
	}
	returns, err := s.returns.GetReturns(ctx, storeID, statusFilter)
	if err != nil {
		return nil, err
	}
	return &ReturnListResult{Returns: returns, StoreID: storeID}, nil
}

// ── Cash sessions ────────────────────────────────────────────────────────────

func (s *appService) OpenSession(ctx context.Context, actor core.Actor, openingBalance decimal.Decimal) (*SessionResult, error) {
	sess, err := s.cash.Open(ctx, actor.StoreID, actor.UserID, openingBalance)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: sess}, nil
}

func (s *appService) CloseSession(ctx context.Context, actor core.Actor, sessionID int, closingBalance decimal.Decimal, notes string) (*SessionReportResult, error) {
	sess, err := s.cash.Close(ctx, sessionID, actor.UserID, closingBalance, notes)
	if err != nil {
		return nil, err
	}
	return s.sessionReport(ctx, sess)
}

func (s *appService) CurrentSession(ctx context.Context, storeID int) (*SessionReportResult, error) {
	sess, err := s.cash.CurrentSession(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return s.sessionReport(ctx, sess)
}

func (s *appService) RecordExpense(ctx context.Context, actor core.Actor, amount decimal.Decimal, reference string) (*SessionReportResult, error) {
	if _, err := s.cash.RecordExpense(ctx, actor.StoreID, actor.UserID, amount, reference); err != nil {
		return nil, err
	}
	return s.CurrentSession(ctx, actor.StoreID)
}

func (s *appService) sessionReport(ctx context.Context, sess *core.CashSession) (*SessionReportResult, error) {
	movements, err := s.cash.GetMovements(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	report := &SessionReportResult{Session: sess, Movements: movements}
	if sess.Status == core.SessionClosed {
		report.ExpectedBalance = *sess.ExpectedBalance
		report.DifferenceKind = core.DifferenceKind(*sess.Difference)
		return report, nil
	}

	expected, err := s.cash.ExpectedBalance(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	report.ExpectedBalance = expected
	return report, nil
}

// ── Counterparties ───────────────────────────────────────────────────────────

func (s *appService) CreateCustomer(ctx context.Context, storeID int, code, name, phone string) (*core.Customer, error) {
	return s.parties.CreateCustomer(ctx, storeID, code, name, phone)
}

func (s *appService) ListCustomers(ctx context.Context, storeID int) ([]core.Customer, error) {
	return s.parties.GetCustomers(ctx, storeID)
}

func (s *appService) CreateSupplier(ctx context.Context, storeID int, code, name, phone string) (*core.Supplier, error) {
	return s.parties.CreateSupplier(ctx, storeID, code, name, phone)
}

func (s *appService) ListSuppliers(ctx context.Context, storeID int) ([]core.Supplier, error) {
	return s.parties.GetSuppliers(ctx, storeID)
}

// ── AI assistant ─────────────────────────────────────────────────────────────

func (s *appService) InterpretCommand(ctx context.Context, storeID int, text string) (*AIResult, error) {
	if s.agent == nil {
		return nil, fmt.Errorf("AI assistant is not configured")
	}

	shopContext, err := s.buildShopContext(ctx, storeID)
	if err != nil {
		return nil, err
	}

	proposal, err := s.agent.InterpretCommand(ctx, text, shopContext)
	if err != nil {
		return nil, err
	}
	if proposal.IsClarification() {
		return &AIResult{
			IsClarification:      true,
			ClarificationMessage: proposal.Clarification,
		}, nil
	}
	return &AIResult{Proposal: proposal}, nil
}

// buildShopContext assembles the grounding text the agent needs to resolve
// codes: current stock, customers, and unpaid posted documents.
func (s *appService) buildShopContext(ctx context.Context, storeID int) (string, error) {
	levels, err := s.stock.GetStockLevels(ctx, storeID)
	if err != nil {
		return "", err
	}
	customers, err := s.parties.GetCustomers(ctx, storeID)
	if err != nil {
		return "", err
	}
	balances, err := s.balances.CustomerBalances(ctx, storeID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Stock:\n")
	for _, l := range levels {
		if l.Kind == "phone" {
			b.WriteString(fmt.Sprintf("  phone %s (%s) status=%s\n", l.Code, l.Name, *l.Status))
			continue
		}
		b.WriteString(fmt.Sprintf("  accessory %s (%s) qty=%d\n", l.Code, l.Name, l.Quantity))
	}
	b.WriteString("Customers:\n")
	for _, c := range customers {
		b.WriteString(fmt.Sprintf("  %s %s\n", c.Code, c.Name))
	}
	b.WriteString("Unpaid documents:\n")
	for _, bal := range balances {
		b.WriteString(fmt.Sprintf("  customer %s owes %s\n", bal.Code, bal.Remaining))
	}
	return b.String(), nil
}

func (s *appService) ExecuteProposal(ctx context.Context, actor core.Actor, proposal core.CommandProposal) (*ExecutionResult, error) {
	proposal.Normalize()
	if err := proposal.Validate(); err != nil {
		return nil, err
	}

	switch proposal.Action {
	case "create_sale":
		qty, err := proposal.QtyInt()
		if err != nil {
			return nil, err
		}
		res, err := s.CreateDocument(ctx, actor, CreateDocumentRequest{
			Type:             core.DocSale,
			CounterpartyCode: proposal.CustomerCode,
			Items:            []core.ItemInput{{ProductCode: proposal.ProductCode, Qty: qty}},
		})
		if err != nil {
			return nil, err
		}
		res, err = s.PostDocument(ctx, res.Document.ID)
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{
			Action:   proposal.Action,
			Message:  fmt.Sprintf("posted sale %s for %s", res.Document.Number, res.Document.Total),
			Document: res.Document,
		}, nil

	case "record_payment":
		amount, err := proposal.AmountDecimal()
		if err != nil {
			return nil, err
		}
		res, err := s.RecordPayment(ctx, actor, RecordPaymentRequest{
			Ref:    proposal.DocNumber,
			Amount: amount,
			Method: core.PayMethod(proposal.Method),
		})
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{
			Action:   proposal.Action,
			Message:  fmt.Sprintf("payment of %s applied to %s, remaining %s", amount, res.Document.Number, res.Document.RemainingAmount),
			Document: res.Document,
		}, nil

	case "register_phone":
		sellPrice := decimal.Zero
		if proposal.Amount != "" {
			var err error
			sellPrice, err = proposal.AmountDecimal()
			if err != nil {
				return nil, err
			}
		}
		res, err := s.RegisterPhone(ctx, RegisterPhoneRequest{
			StoreID:   actor.StoreID,
			IMEI:      proposal.ProductCode,
			Model:     proposal.PhoneModel,
			SellPrice: sellPrice,
		})
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{
			Action:  proposal.Action,
			Message: fmt.Sprintf("registered %s with IMEI %s", res.Phone.Model, res.Phone.IMEI),
			Phone:   res.Phone,
		}, nil

	case "adjust_stock":
		delta, err := strconv.Atoi(proposal.Qty)
		if err != nil {
			return nil, fmt.Errorf("invalid stock delta %q", proposal.Qty)
		}
		res, err := s.AdjustStock(ctx, actor, proposal.ProductCode, delta)
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{
			Action:    proposal.Action,
			Message:   fmt.Sprintf("%s now at %d", res.Accessory.SKU, res.Accessory.Quantity),
			Accessory: res.Accessory,
		}, nil

	case "record_expense":
		amount, err := proposal.AmountDecimal()
		if err != nil {
			return nil, err
		}
		report, err := s.RecordExpense(ctx, actor, amount, proposal.Reference)
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{
			Action:  proposal.Action,
			Message: fmt.Sprintf("expense of %s recorded, drawer expected at %s", amount, report.ExpectedBalance),
			Session: report,
		}, nil

	default:
		return nil, fmt.Errorf("action %q cannot be executed", proposal.Action)
	}
}
