package contracts

import "errors"

// Error taxonomy shared by the engine and the HTTP layer
var (
	// infrastructure
	ErrExternalRead = errors.New("external record read failed")
	ErrLedgerWrite  = errors.New("investment ledger write failed")
	ErrBudgetSync   = errors.New("remaining budget sync failed")
	ErrLockBusy     = errors.New("investor lock unavailable")

	// business rule violations
	ErrStageNotInvestable  = errors.New("当前阶段不可投资，请见大赛规则")
	ErrInvestorNotFound    = errors.New("投资人不存在")
	ErrProjectNotQualified = errors.New("该项目未晋级，不可投资")
	ErrInsufficientBudget  = errors.New("投资金额超过剩余额度")
	ErrInvalidAmount       = errors.New("投资金额必须大于0")

	ErrProjectNotFound    = errors.New("项目不存在")
	ErrInvalidCredentials = errors.New("账号或密码错误")
)

var businessErrors = []error{
	ErrStageNotInvestable,
	ErrInvestorNotFound,
	ErrProjectNotQualified,
	ErrInsufficientBudget,
	ErrInvalidAmount,
}

// IsBusinessError reports whether err is a user-facing rule violation
func IsBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
