package contracts

// Stage is the competition phase
// ⭐ SSOT: stage codes, display texts and the investment gate
type Stage string

const (
	StageSelection  Stage = "selection"
	StageLock       Stage = "lock"
	StageInvestment Stage = "investment"
	StageEnded      Stage = "ended"
)

// AllStages returns the stages in chronological order
func AllStages() []Stage {
	return []Stage{StageSelection, StageLock, StageInvestment, StageEnded}
}

type stageText struct {
	name string
	time string
	rule string
}

var stageTexts = map[Stage]stageText{
	StageSelection: {
		name: "海选期",
		time: "10月24日24:00 - 11月7日12:00",
		rule: "本阶段以累计UV排名,如果UV相同,则按队伍序号排名。本阶段结束,前15名晋级,在投资期可以接受投资人投资",
	},
	StageLock: {
		name: "锁定期",
		time: "11月7日12:00 - 11月14日0:00",
		rule: "本阶段期间,已晋级的15个作品一个队列,按UV排名;其他作品处在非晋级区,单独一个队列,依然按照UV排名",
	},
	StageInvestment: {
		name: "投资期",
		time: "11月14日0:00 - 18:00",
		rule: "本阶段,投资人可将虚拟投资金投给晋级的15个作品。本阶段排名按照权重值(UV*20%+投资金额*80%)排序,权重相同按投资金额高低排序,投资金额相同按队伍序号排序",
	},
	StageEnded: {
		name: "活动结束",
		time: "11月14日18:00之后",
		rule: "活动结束,所有作品不再更新UV、投资额数据,排名不变",
	},
}

// ParseStage maps a stage code to a Stage. Unknown codes fall back to selection.
func ParseStage(code string) Stage {
	s := Stage(code)
	if _, ok := stageTexts[s]; ok {
		return s
	}
	return StageSelection
}

// Valid reports whether s is a known stage code
func (s Stage) Valid() bool {
	_, ok := stageTexts[s]
	return ok
}

// String returns the stage code
func (s Stage) String() string { return string(s) }

func (s Stage) Code() string { return string(s) }
func (s Stage) Name() string { return stageTexts[s].name }
func (s Stage) Time() string { return stageTexts[s].time }
func (s Stage) Rule() string { return stageTexts[s].rule }

// CanInvest is true only during the investment stage
func (s Stage) CanInvest() bool {
	return s == StageInvestment
}

// UsesQualifiedSet reports whether ranking in s depends on the locked set
func (s Stage) UsesQualifiedSet() bool {
	return s == StageLock || s == StageInvestment || s == StageEnded
}

// StageInfo is the public view of a stage
type StageInfo struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Time      string `json:"time"`
	Rule      string `json:"rule"`
	CanInvest bool   `json:"canInvest"`
}

// Info returns the display view of s
func (s Stage) Info() StageInfo {
	return StageInfo{
		Code:      s.Code(),
		Name:      s.Name(),
		Time:      s.Time(),
		Rule:      s.Rule(),
		CanInvest: s.CanInvest(),
	}
}
