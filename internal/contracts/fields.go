package contracts

// Record store column names. The store is a human-edited bitable, so the
// keys are the sheet headers as the operators typed them.
// ⭐ SSOT: no other package spells a column name
const (
	// shared
	FieldEnabled = "是否启用"

	// projects
	FieldProjectID          = "项目ID"
	FieldProjectName        = "项目名称"
	FieldProjectDescription = "一句话描述"
	FieldProjectURL         = "项目网址"
	FieldProjectImage       = "项目配图URL"
	FieldTeamName           = "队伍名称"
	FieldTeamNumber         = "队伍编号"
	FieldTeamURL            = "团队介绍页URL"
	FieldAnalyticsAccount   = "百度统计账号"
	FieldAnalyticsSiteID    = "百度统计SiteID"
	FieldUV                 = "累计UV"

	// investors
	FieldInvestorID       = "投资人ID"
	FieldInvestorUsername = "账号"
	FieldInvestorPassword = "初始密码"
	FieldInvestorName     = "姓名"
	FieldInvestorTitle    = "职务"
	FieldInvestorAvatar   = "头像URL"
	FieldInitialBudget    = "初始额度"
	FieldRemainingBudget  = "剩余额度"

	// investments (ledger)
	FieldLedgerInvestor     = "投资人账号"
	FieldLedgerProjectID    = "项目ID"
	FieldLedgerAmount       = "投资金额"
	FieldLedgerTime         = "投资时间"
	FieldLedgerInvestorName = "投资人姓名"
	FieldLedgerProjectName  = "项目名称"

	// config
	FieldConfigKey   = "配置项"
	FieldConfigValue = "配置值"
)
