package ai

import (
	"slices"

	"github.com/poiesic/masterdb/core"
)

// Unclassified is the label used when no category applies.
const Unclassified = core.LegacyUnclassified

// Classification is the pair of legacy categories assigned to a question.
type Classification struct {
	Mid string `json:"mid"`
	Sub string `json:"sub"`
}

// IsClassified reports whether a mid category was assigned.
func (c Classification) IsClassified() bool {
	return c.Mid != "" && c.Mid != Unclassified
}

// LegacyGroup is one mid category and the sub categories it admits.
type LegacyGroup struct {
	Mid  string
	Subs []string
}

// LegacyScheme is the legacy mid/sub classification used by the survey archive.
var LegacyScheme = []LegacyGroup{
	{Mid: "리더십", Subs: []string{
		"목표/전략", "경영전반", "권한위임", "코칭/육성", "조직관리", "업무지시", "소통/경청",
		"의사결정", "위기/갈등", "신뢰", "공정성", "의견개진", "변화/혁신", "리더십일반",
	}},
	{Mid: "조직문화", Subs: []string{"가치/비전워크", "신뢰/존중", "근무환경", "조직문화일반"}},
	{Mid: "조직/프로세스", Subs: []string{
		"부서간협력", "업무/프로세스", "업무효율성", "권한/책임", "의사결정", "의사소통", "조직프로세스일반",
	}},
	{Mid: "인사제도", Subs: []string{"보상급여", "평가제도", "교육/경력개발", "인력확보배치", "승진/이동", "인사일반"}},
	{Mid: "몰입도", Subs: []string{"조직몰입도"}},
	{Mid: "경영/전략", Subs: []string{"경영일반", "성과및성장", "목표/KPI"}},
	{Mid: "기타", Subs: []string{"고객지향", "윤리경영", "다양성", "안전", "워라밸행복", "갈등관리"}},
}

// Canonical maps labels outside LegacyScheme to Unclassified.
// A known mid with an unknown sub keeps the mid.
func Canonical(c Classification) Classification {
	for _, g := range LegacyScheme {
		if g.Mid != c.Mid {
			continue
		}
		if slices.Contains(g.Subs, c.Sub) {
			return c
		}
		return Classification{Mid: c.Mid, Sub: Unclassified}
	}
	return Classification{Mid: Unclassified, Sub: Unclassified}
}
