package gateway

// Status values returned by the gateway for orders and transfers.
const (
	StatusPaid        = "paid"
	StatusFailed      = "failed"
	StatusProcessing  = "processing"
	StatusTransferred = "transferred"
)

type apiError struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

type CustomerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document"` // CPF, digits only
	Type     string `json:"type"`     // "individual"
}

type CustomerResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type CardRequest struct {
	Number     string `json:"number"`
	HolderName string `json:"holder_name"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVV        string `json:"cvv"`
}

type CardResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type OrderItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Amount      int64  `json:"amount"` // minor units
}

type OrderRequest struct {
	CustomerID string      `json:"customer_id"`
	Code       string      `json:"code"`
	Items      []OrderItem `json:"items"`
}

type OrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type BankDetails struct {
	BankCode  string `json:"bank_code"`
	Agencia   string `json:"agencia"`
	AgenciaDV string `json:"agencia_dv"`
	Conta     string `json:"conta"`
	ContaDV   string `json:"conta_dv"`
	CPF       string `json:"cpf"`
	LegalName string `json:"legal_name"`
}

type TransferRequest struct {
	Code        string      `json:"code"`
	Amount      int64       `json:"amount"` // minor units
	BankAccount BankDetails `json:"bank_account"`
}

type TransferResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
