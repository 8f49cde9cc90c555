package domain

import "errors"

var (
	// ErrKeyNotFound возвращается KVStore, если ключа нет в хранилище.
	ErrKeyNotFound = errors.New("key not found")
	// ErrPersistFailed — не удалось сохранить снимок корзины.
	ErrPersistFailed = errors.New("cart persist failed")
	// ErrSnapshotCorrupt — сохранённый снимок не удалось разобрать.
	ErrSnapshotCorrupt = errors.New("stored snapshot is corrupt")
	// ErrProductRequired — у добавляемого товара нет идентификатора.
	ErrProductRequired = errors.New("product id is required")
	// ErrInvalidQuantity — количество должно быть положительным целым.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrItemPriceInvalid — цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// ErrLineNotFound — позиция корзины не найдена.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrPromoCodeRequired — пустой промокод.
	ErrPromoCodeRequired = errors.New("promo code is required")
	// ErrComboSelectionInvalid — выбор товаров не соответствует правилам комбо.
	ErrComboSelectionInvalid = errors.New("combo selection does not match selection rules")
	// ErrComboNotFound возвращается каталогом, если комбо не найдено.
	ErrComboNotFound = errors.New("combo not found")
	// ErrProductNotFound возвращается каталогом, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrStoreNotFound возвращается каталогом, если точка продаж не найдена.
	ErrStoreNotFound = errors.New("store not found")
	// ErrOrderNotFound возвращается бэкендом заказов, если заказа нет.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderIDRequired — отсутствует идентификатор заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// ErrBackendUnavailable — временная недоступность внешнего сервиса, можно повторить.
	ErrBackendUnavailable = errors.New("backend temporarily unavailable")
	// ErrBackendRejected — внешний сервис отклонил запрос (4xx).
	ErrBackendRejected = errors.New("backend rejected request")
	// ErrSubmissionInProgress — отправка заказа уже выполняется в этой сессии.
	ErrSubmissionInProgress = errors.New("order submission already in progress")
	// ErrNothingToResume — нет незавершённой отправки, которую можно продолжить.
	ErrNothingToResume = errors.New("no interrupted submission to resume")
	// ErrStepOutOfRange — неизвестный шаг checkout.
	ErrStepOutOfRange = errors.New("checkout step out of range")
	// ErrSessionRequired — запрос без идентификатора сессии.
	ErrSessionRequired = errors.New("session id is required")
)

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrComboNotFound) ||
		errors.Is(err, ErrStoreNotFound) ||
		errors.Is(err, ErrLineNotFound)
}

// IsTemporary проверяет, можно ли повторить операцию позже.
func IsTemporary(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}
