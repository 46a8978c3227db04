package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreExplicitTotal(t *testing.T) {
	score, _ := Score("内容充实。\n总分：52\n评语\n立意深刻，结构严谨。")
	assert.Equal(t, 52, score)
}

func TestScoreColonVariants(t *testing.T) {
	score, _ := Score("总分: 48")
	assert.Equal(t, 48, score)
}

func TestScoreFallbackNearMarker(t *testing.T) {
	score, _ := Score("这篇文章可以得到55分的成绩。")
	assert.Equal(t, 55, score)
}

func TestScoreFractionMarker(t *testing.T) {
	score, _ := Score("评定为 42/60。")
	assert.Equal(t, 42, score)
}

func TestScoreIgnoresOutOfRangeNearby(t *testing.T) {
	// 900 is not a plausible score; the parser must not pick it up.
	score, _ := Score("全文900分句无数。总分：50")
	assert.Equal(t, 50, score)
}

func TestScoreUnparseableDefaultsMidRange(t *testing.T) {
	score, _ := Score("这篇文章写得还不错。")
	assert.Equal(t, DefaultScore, score)
}

func TestScoreOutOfRangeDefaultsMidRange(t *testing.T) {
	score, _ := Score("总分：95")
	assert.Equal(t, DefaultScore, score)
}

func TestScoreCritiqueAfterMarker(t *testing.T) {
	_, critique := Score("总分：50\n评语\n论证有力。\n语言流畅。")
	assert.Equal(t, "论证有力。\n语言流畅。", critique)
}

func TestScoreCritiqueAfterWidthChangingRunes(t *testing.T) {
	// Lowercasing "Ⱥ" grows its UTF-8 encoding from 2 to 3 bytes, so the
	// marker search must never carry offsets across case-folded copies.
	response := strings.Repeat("Ⱥ", 40) + "评语\n论证有力。"

	score, critique := Score(response)

	assert.Equal(t, DefaultScore, score)
	assert.Equal(t, "论证有力。", critique)
}

func TestScoreCritiqueMarkerOnlyKeepsFullText(t *testing.T) {
	response := strings.Repeat("Ⱥ", 40) + "评语"
	_, critique := Score(response)
	assert.Equal(t, response, critique)
}

func TestScoreCritiqueEnglishMarkerCaseInsensitive(t *testing.T) {
	_, critique := Score("Critique\nGood structure, weak closing.")
	assert.Equal(t, "Good structure, weak closing.", critique)
}

func TestScoreCritiqueFallsBackToFullText(t *testing.T) {
	response := "总分：50，理由略。"
	_, critique := Score(response)
	assert.Equal(t, response, critique)
}

func TestGradeLevel(t *testing.T) {
	assert.Equal(t, "一等文", GradeLevel(55))
	assert.Equal(t, "二等文", GradeLevel(45))
	assert.Equal(t, "三等文", GradeLevel(32))
	assert.Equal(t, "四等文", GradeLevel(12))
}

func TestAuditFencedJSON(t *testing.T) {
	response := "审核结果如下：\n```json\n{\"action\": \"REVISE\", \"confidence\": 0.6, \"issues\": [\"结尾仓促\"], \"comments\": \"结尾需要升华\"}\n```"

	d := Audit(response)

	assert.Equal(t, ActionRevise, d.Action)
	assert.InDelta(t, 0.6, d.Confidence, 1e-9)
	assert.Equal(t, []string{"结尾仓促"}, d.Issues)
	assert.Equal(t, "结尾需要升华", d.Comments)
}

func TestAuditInlineJSON(t *testing.T) {
	d := Audit(`经过审核 {"action": "REWRITE", "comments": "偏题"} 请处理`)
	assert.Equal(t, ActionRewrite, d.Action)
}

func TestAuditLowercaseActionNormalized(t *testing.T) {
	d := Audit("```json\n{\"action\": \"revise\"}\n```")
	assert.Equal(t, ActionRevise, d.Action)
}

func TestAuditUnknownActionFailsOpen(t *testing.T) {
	d := Audit("```json\n{\"action\": \"ESCALATE\"}\n```")
	assert.Equal(t, ActionAccept, d.Action)
}

func TestAuditKeywordFallback(t *testing.T) {
	d := Audit("这篇文章基本合格，但第二段需要修改。")
	assert.Equal(t, ActionRevise, d.Action)
	assert.NotEmpty(t, d.Comments)
}

func TestAuditRewriteKeyword(t *testing.T) {
	d := Audit("完全偏题，建议重写。")
	assert.Equal(t, ActionRewrite, d.Action)
}

func TestAuditPlainTextDefaultsAccept(t *testing.T) {
	d := Audit("文章质量良好。")
	assert.Equal(t, ActionAccept, d.Action)
	assert.InDelta(t, 0.8, d.Confidence, 1e-9)
}

func TestEssayLabeledTitle(t *testing.T) {
	title, content := Essay("标题：论坚持\n\n正文第一段。\n正文第二段。")
	assert.Equal(t, "论坚持", title)
	assert.Equal(t, "正文第一段。\n正文第二段。", content)
}

func TestEssayMarkdownTitle(t *testing.T) {
	title, content := Essay("# 梦想与现实\n开篇内容，很长的一段论述文字。")
	assert.Equal(t, "梦想与现实", title)
	assert.Contains(t, content, "开篇内容")
}

func TestEssayShortLineTitle(t *testing.T) {
	title, _ := Essay("青春的底色与方向\n青春是一场盛大的修行，每个人都在其中寻找自己的方向。")
	assert.Equal(t, "青春的底色与方向", title)
}

func TestEssaySynthesizedTitle(t *testing.T) {
	title, content := Essay("坚持是一种品质，更是一种力量。它支撑着人们走过漫长的岁月。")
	assert.Equal(t, "论坚持是一种品质", title)
	assert.NotEmpty(t, content)
}

func TestEssayEmptyBodyKeepsResponse(t *testing.T) {
	_, content := Essay("标题：孤题")
	assert.Equal(t, "标题：孤题", content)
}

func TestTopicStrategyLabeled(t *testing.T) {
	response := "立意：以小见大\n中心论点：平凡之中蕴藏伟大"

	s := TopicStrategy(response, "平凡")

	assert.Equal(t, "以小见大", s.Angle)
	assert.Equal(t, "平凡之中蕴藏伟大", s.Thesis)
}

func TestTopicStrategyFallbacks(t *testing.T) {
	s := TopicStrategy("好。", "奋斗")

	assert.Empty(t, s.Angle)
	assert.Equal(t, "关于'奋斗'的深入思考", s.Thesis)
}

func TestTopicStrategyAngleFromSubstantialLine(t *testing.T) {
	long := strings.Repeat("思考的价值在于沉淀，", 5)
	s := TopicStrategy("短行\n"+long, "思考")
	assert.NotEmpty(t, s.Angle)
}

func TestMaterials(t *testing.T) {
	response := "【名言警句】\n- 千里之行，始于足下。\n- 业精于勤，荒于嬉。\n# 注释\nok"

	items := Materials(response)

	assert.Equal(t, []string{"【名言警句】", "千里之行，始于足下。", "业精于勤，荒于嬉。"}, items)
}
