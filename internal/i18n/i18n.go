// Package i18n localizes the client facing detail strings. English is the
// source language; Arabic translations are registered at init.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var (
	Supported = []language.Tag{language.English, language.Arabic}
	matcher   = language.NewMatcher(Supported)
	builder   = catalog.NewBuilder(catalog.Fallback(language.English))
	known     = map[string]struct{}{}
)

var arabic = map[string]string{
	"Authentication required":                      "المصادقة مطلوبة",
	"Admin access required":                        "صلاحية المسؤول مطلوبة",
	"Token has expired":                            "انتهت صلاحية الرمز",
	"Invalid token":                                "رمز غير صالح",
	"Invalid token: missing user ID":               "رمز غير صالح: معرف المستخدم مفقود",
	"Event not found":                              "الفعالية غير موجودة",
	"Theme not found":                              "السمة غير موجودة",
	"Prompt not found":                             "الوصف غير موجود",
	"Event with this slug already exists":          "توجد فعالية بهذا المعرف مسبقا",
	"No fields to update":                          "لا توجد حقول للتحديث",
	"image is required":                            "الصورة مطلوبة",
	"option is required":                           "الخيار مطلوب",
	"invalid image encoding":                       "ترميز الصورة غير صالح",
	"invalid request body":                         "نص الطلب غير صالح",
	"image must be a PNG, JPEG, WEBP or HEIC file": "يجب أن تكون الصورة بصيغة PNG أو JPEG أو WEBP أو HEIC",
	"image generation timed out":                   "انتهت مهلة إنشاء الصورة",
	"Multi-tenant support not configured":          "دعم الفعاليات غير مفعل",
	"Too many requests":                            "طلبات كثيرة جدا",
	"No selected file":                             "لم يتم اختيار ملف",
	"No file part in the request":                  "لا يوجد ملف في الطلب",
	"File type not allowed":                        "نوع الملف غير مسموح",
	"Image saved and sent to printer":              "تم حفظ الصورة وإرسالها إلى الطابعة",
	"Image saved but printing failed":              "تم حفظ الصورة لكن فشلت الطباعة",
	"Amount must be positive":                      "يجب أن يكون المبلغ موجبا",
	"EFTPOS DLL is only supported on Windows":      "جهاز الدفع مدعوم على ويندوز فقط",
	"Internal server error":                        "خطأ داخلي في الخادم",
}

func init() {
	for src, ar := range arabic {
		_ = builder.SetString(language.English, src, src)
		_ = builder.SetString(language.Arabic, src, ar)
		known[src] = struct{}{}
	}
}

// Match returns the supported base language ("en" or "ar") closest to the
// given preferences, or fallback when nothing matches confidently.
func Match(fallback string, prefs ...language.Tag) string {
	if len(prefs) == 0 {
		return Normalize(fallback)
	}
	tag, _, conf := matcher.Match(prefs...)
	if conf == language.No {
		return Normalize(fallback)
	}
	base, _ := tag.Base()
	return base.String()
}

// Normalize maps any locale string onto a supported base language.
func Normalize(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return "en"
	}
	matched, _, conf := matcher.Match(tag)
	if conf == language.No {
		return "en"
	}
	base, _ := matched.Base()
	return base.String()
}

// T translates msg for locale. Messages without a registered translation
// are returned unchanged.
func T(locale, msg string) string {
	if _, ok := known[msg]; !ok {
		return msg
	}
	p := message.NewPrinter(language.Make(Normalize(locale)), message.Catalog(builder))
	return p.Sprintf(msg)
}
