package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators добавляет правила ymd и category в валидатор gin
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
			return models.ValidDate(fl.Field().String())
		})
		_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return models.Category(fl.Field().String()).IsValid()
		})
	})
}

// bindMessage превращает ошибку биндинга в текст для клиента
func bindMessage(err error, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "ymd":
			return "날짜 형식이 올바르지 않습니다. YYYY-MM-DD 형식으로 입력하세요."
		case "category":
			return "알 수 없는 카테고리입니다."
		}
		if verrs[0].Field() == "Companies" {
			return "회사 정보가 최소 하나 필요합니다."
		}
	}
	return fallback
}

// FlexInt принимает число или строку с числом: клиенты шлют id в обоих видах
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// 3.0 и подобные числа с нулевой дробной частью
		fl, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || fl != float64(int64(fl)) {
			return errors.New("id must be an integer")
		}
		n = int64(fl)
	}

	*f = FlexInt(n)
	return nil
}

// Ptr возвращает nil для отсутствующего или нулевого id
func (f *FlexInt) Ptr() *int64 {
	if f == nil || *f == 0 {
		return nil
	}
	v := int64(*f)
	return &v
}

// StringList принимает массив строк; любое другое значение даёт пустой список
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		*l = StringList{}
		return nil
	}

	out := make(StringList, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}
