package translate

import (
	"strings"
	"unicode"
)

// Lexicon is a dictionary-based ru→en engine. It substitutes known
// Russian words token by token and leaves unknown tokens untouched, so
// its output is stable across runs and needs no model files. Downstream
// tokenisation keeps only Latin words, which makes word-level coverage
// of the phishing vocabulary sufficient.
type Lexicon struct {
	entries map[string]string
}

// NewLexicon creates the bundled dictionary engine.
func NewLexicon() *Lexicon {
	return &Lexicon{entries: ruLexicon}
}

// Translate substitutes dictionary words, preserving all separators and
// unknown tokens. It never fails.
func (l *Lexicon) Translate(text string) (string, error) {
	var out strings.Builder
	out.Grow(len(text))

	var word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		token := word.String()
		if replacement, ok := l.entries[strings.ToLower(token)]; ok {
			out.WriteString(replacement)
		} else {
			out.WriteString(token)
		}
		word.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) {
			word.WriteRune(r)
			continue
		}
		flush()
		out.WriteRune(r)
	}
	flush()

	return out.String(), nil
}

// ruLexicon covers the Russian vocabulary that matters for phishing
// analysis: urgency, credentials, banking, account lifecycle and common
// business correspondence, with frequent inflected forms listed
// explicitly.
var ruLexicon = map[string]string{
	// urgency and pressure
	"срочно":        "urgently",
	"срочный":       "urgent",
	"срочная":       "urgent",
	"срочное":       "urgent",
	"немедленно":    "immediately",
	"немедленного":  "immediate",
	"сейчас":        "now",
	"сегодня":       "today",
	"внимание":      "attention",
	"важно":         "important",
	"важное":        "important",
	"важная":        "important",
	"последнее":     "final",
	"предупреждение": "warning",
	"истекает":      "expires",
	"истек":         "expired",
	"истекла":       "expired",
	"осталось":      "remaining",

	// credentials and verification
	"пароль":        "password",
	"пароля":        "password",
	"логин":         "login",
	"подтвердите":   "verify",
	"подтвердить":   "verify",
	"подтверждение": "verification",
	"проверьте":     "check",
	"проверка":      "verification",
	"проверить":     "check",
	"обновите":      "update",
	"обновить":      "update",
	"обновление":    "update",
	"восстановите":  "restore",
	"восстановление": "recovery",
	"данные":        "data",
	"данных":        "data",
	"код":           "code",
	"доступ":        "access",
	"доступа":       "access",
	"вход":          "login",
	"войдите":       "login",
	"войти":         "login",
	"учетная":       "account",
	"учетной":       "account",
	"запись":        "record",
	"записи":        "record",

	// account lifecycle
	"аккаунт":       "account",
	"аккаунта":      "account",
	"счет":          "account",
	"счета":         "account",
	"заблокирован":  "blocked",
	"заблокирована": "blocked",
	"заблокированы": "blocked",
	"блокировка":    "blocking",
	"блокировки":    "blocking",
	"приостановлен": "suspended",
	"приостановлена": "suspended",
	"отключен":      "disabled",
	"удален":        "deleted",
	"удалена":       "deleted",

	// banking and money
	"банк":       "bank",
	"банка":      "bank",
	"банковская": "banking",
	"банковский": "banking",
	"карта":      "card",
	"карты":      "card",
	"карту":      "card",
	"перевод":    "transfer",
	"перевода":   "transfer",
	"платеж":     "payment",
	"платежа":    "payment",
	"оплата":     "payment",
	"оплатите":   "pay",
	"оплаты":     "payment",
	"деньги":     "money",
	"денег":      "money",
	"средства":   "funds",
	"средств":    "funds",
	"сумма":      "amount",
	"суммы":      "amount",
	"рублей":     "rubles",
	"баланс":     "balance",
	"кредит":     "credit",
	"выигрыш":    "prize",
	"приз":       "prize",
	"бонус":      "bonus",
	"бесплатно":  "free",
	"скидка":     "discount",

	// action requests
	"нажмите":    "click",
	"нажать":     "click",
	"перейдите":  "follow",
	"перейти":    "follow",
	"ссылка":     "link",
	"ссылке":     "link",
	"ссылку":     "link",
	"скачайте":   "download",
	"скачать":    "download",
	"откройте":   "open",
	"открыть":    "open",
	"заполните":  "fill",
	"отправьте":  "send",
	"отправить":  "send",
	"ответьте":   "reply",
	"свяжитесь":  "contact",

	// security vocabulary
	"безопасность": "security",
	"безопасности": "security",
	"защита":       "protection",
	"защиты":       "protection",
	"подозрительная": "suspicious",
	"подозрительный": "suspicious",
	"мошенничество": "fraud",
	"мошенники":    "fraudsters",
	"вирус":        "virus",
	"угроза":       "threat",

	// correspondence
	"уважаемый":   "dear",
	"уважаемая":   "dear",
	"уважаемые":   "dear",
	"клиент":      "client",
	"клиента":     "client",
	"пользователь": "user",
	"пользователя": "user",
	"письмо":      "letter",
	"письма":      "letter",
	"сообщение":   "message",
	"сообщения":   "message",
	"уведомление": "notification",
	"уведомления": "notification",
	"поддержка":   "support",
	"поддержки":   "support",
	"служба":      "service",
	"службы":      "service",
	"отдел":       "department",
	"компания":    "company",
	"компании":    "company",
	"договор":     "contract",
	"договора":    "contract",
	"документ":    "document",
	"документы":   "documents",
	"документов":  "documents",
	"вложение":    "attachment",
	"вложении":    "attachment",
	"файл":        "file",
	"файлы":       "files",
	"встреча":     "meeting",
	"встречи":     "meeting",
	"завтра":      "tomorrow",
	"здравствуйте": "hello",
	"спасибо":     "thanks",
	"пожалуйста":  "please",
	"просьба":     "request",
	"запрос":      "request",
	"информация":  "information",
	"информации":  "information",
	"номер":       "number",
	"телефон":     "phone",
	"адрес":       "address",
	"получите":    "receive",
	"получить":    "receive",
	"ваш":         "your",
	"ваша":        "your",
	"ваше":        "your",
	"ваши":        "your",
	"вашего":      "your",
	"вашей":       "your",
}
