package domain

// Category классифицирует траты агента. Хранится как u8 для компактности
// и входит в публичные входы proof-а, поэтому значения менять нельзя.
type Category uint8

const (
	CategoryAIAPI      Category = 1 // AI/ML inference API (OpenAI, Anthropic и т.д.)
	CategoryDataFeed   Category = 2 // Платные фиды данных и котировки
	CategoryTool       Category = 3 // Прочие инструменты и утилиты
	CategoryGameAction Category = 4 // Игровые действия (demo-сценарий)
)
