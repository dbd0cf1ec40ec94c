package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSummary = `
入院记录
姓名 张三 性别 男 年龄 45岁 民族 汉族 婚姻 已婚
住院日期: 2024年1月5日
出院日期: 2024年1月15日
主诉: 头晕伴胸闷3天
入院时情况: 患者3天前无明显诱因出现头晕,伴胸闷不适。
辅助检查: 血红蛋白 120g/L 血糖: 7.8mmol/L
诊疗经过: 1.降压治疗 2.控制血糖
出院诊断: 高血压2级;2型糖尿病
出院时情况: 好转出院。
`

func TestRuleExtractor_BasicFields(t *testing.T) {
	e := NewRuleExtractor()
	rec, err := e.Extract("姓名 张三 性别 男 年龄 45岁")
	require.NoError(t, err)

	assert.Equal(t, "张三", rec.PatientName)
	assert.Equal(t, "男", rec.Gender)
	assert.Equal(t, 45, rec.Age)
}

func TestRuleExtractor_FullSummary(t *testing.T) {
	e := NewRuleExtractor()
	rec, err := e.Extract(sampleSummary)
	require.NoError(t, err)

	assert.Equal(t, "张三", rec.PatientName)
	assert.Equal(t, "汉族", rec.Ethnicity)
	assert.Equal(t, "已婚", rec.MaritalStatus)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.Local), rec.AdmissionDate)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local), rec.DischargeDate)
	assert.Equal(t, "头晕伴胸闷3天", rec.ChiefComplaint)
	assert.Contains(t, rec.Symptoms, "头晕")
	assert.Contains(t, rec.Symptoms, "胸闷")
	assert.Equal(t, []string{"高血压2级", "2型糖尿病"}, rec.Diagnoses)
	assert.Equal(t, []string{"降压治疗", "控制血糖"}, rec.Treatments)
	assert.Equal(t, "120g/L", rec.LabResults["血红蛋白"])
	assert.Equal(t, "7.8mmol/L", rec.LabResults["血糖"])
}

func TestRuleExtractor_MissingFieldsGetDefaults(t *testing.T) {
	e := NewRuleExtractor()
	rec, err := e.Extract("一段不含任何字段的文本")
	require.NoError(t, err)

	assert.Equal(t, Unknown, rec.PatientName)
	assert.Equal(t, Unknown, rec.Gender)
	assert.Equal(t, Unknown, rec.Ethnicity)
	assert.Equal(t, Unknown, rec.MaritalStatus)
	assert.Equal(t, 0, rec.Age)
	assert.Empty(t, rec.Diagnoses)
	assert.Empty(t, rec.LabResults)
}

func TestRuleExtractor_MissingAdmissionDateDefaultsToToday(t *testing.T) {
	fixed := time.Date(2026, 8, 29, 10, 0, 0, 0, time.Local)
	e := &RuleExtractor{now: func() time.Time { return fixed }}

	rec, err := e.Extract("姓名 李四 性别 女")
	require.NoError(t, err)
	assert.Equal(t, fixed, rec.AdmissionDate)
	assert.True(t, rec.DischargeDate.IsZero())
}

func TestRuleExtractor_InvalidDateDigitsFallBack(t *testing.T) {
	fixed := time.Date(2026, 8, 29, 0, 0, 0, 0, time.Local)
	e := &RuleExtractor{now: func() time.Time { return fixed }}

	rec, err := e.Extract("姓名 王五 住院日期: 2024年13月99日")
	require.NoError(t, err)
	assert.Equal(t, fixed, rec.AdmissionDate)
}

func TestRuleExtractor_EmptyInput(t *testing.T) {
	e := NewRuleExtractor()
	_, err := e.Extract("   \n ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestRecord_MapRoundTrip(t *testing.T) {
	e := NewRuleExtractor()
	rec, err := e.Extract(sampleSummary)
	require.NoError(t, err)

	got := FromMap(rec.ToMap())
	assert.Equal(t, rec.PatientName, got.PatientName)
	assert.Equal(t, rec.Age, got.Age)
	assert.Equal(t, rec.Diagnoses, got.Diagnoses)
	assert.Equal(t, rec.LabResults, got.LabResults)
	assert.Equal(t, rec.AdmissionDate.Format("2006-01-02"), got.AdmissionDate.Format("2006-01-02"))
}
