package scoring

import "sync"

// defaultDefinition is the table set the app ships with.
func defaultDefinition() Definition {
	return Definition{
		Levels: []LevelThreshold{
			{Level: 1, XPRequired: 0, Title: "Iniciante", Emoji: "🌱"},
			{Level: 2, XPRequired: 100, Title: "Aprendiz", Emoji: "📘"},
			{Level: 3, XPRequired: 300, Title: "Explorador", Emoji: "🧭"},
			{Level: 4, XPRequired: 600, Title: "Dedicado", Emoji: "💪"},
			{Level: 5, XPRequired: 1000, Title: "Determinado", Emoji: "🎯"},
			{Level: 6, XPRequired: 1500, Title: "Focado", Emoji: "🔥"},
			{Level: 7, XPRequired: 2200, Title: "Disciplinado", Emoji: "⚡"},
			{Level: 8, XPRequired: 3000, Title: "Persistente", Emoji: "🏃"},
			{Level: 9, XPRequired: 4000, Title: "Inspirador", Emoji: "✨"},
			{Level: 10, XPRequired: 5500, Title: "Mestre", Emoji: "🧙"},
			{Level: 11, XPRequired: 7500, Title: "Guru", Emoji: "🧘"},
			{Level: 12, XPRequired: 10000, Title: "Lenda", Emoji: "🏆"},
			{Level: 13, XPRequired: 13000, Title: "Mítico", Emoji: "🐉"},
			{Level: 14, XPRequired: 17000, Title: "Imortal", Emoji: "💎"},
			{Level: 15, XPRequired: 22000, Title: "Transcendente", Emoji: "👑"},
		},
		Streaks: []StreakMultiplierTier{
			{MinDays: 0, Multiplier: 1.0},
			{MinDays: 3, Multiplier: 1.2},
			{MinDays: 7, Multiplier: 1.5},
			{MinDays: 14, Multiplier: 1.75},
			{MinDays: 30, Multiplier: 2.0},
			{MinDays: 60, Multiplier: 2.5},
			{MinDays: 100, Multiplier: 3.0},
		},
		Ranks: []RankTier{
			{ID: "bronze", Name: "Bronze", MinPoints: 0, Emoji: "🥉", Color: "#CD7F32",
				Benefits: []string{"Acesso aos desafios básicos"}},
			{ID: "silver", Name: "Prata", MinPoints: 500, Emoji: "🥈", Color: "#C0C0C0",
				Benefits: []string{"Desafios semanais", "Badge de prata no perfil"}},
			{ID: "gold", Name: "Ouro", MinPoints: 1500, Emoji: "🥇", Color: "#FFD700",
				Benefits: []string{"Desafios exclusivos", "Badge de ouro no perfil"}},
			{ID: "platinum", Name: "Platina", MinPoints: 4000, Emoji: "💠", Color: "#E5E4E2",
				Benefits: []string{"Planos personalizados", "Proteção de sequência mensal"}},
			{ID: "diamond", Name: "Diamante", MinPoints: 10000, Emoji: "💎", Color: "#B9F2FF",
				Benefits: []string{"Mentorias em grupo", "Proteção de sequência semanal"}},
			{ID: "master", Name: "Mestre", MinPoints: 25000, Emoji: "🔮", Color: "#9B59B6",
				Benefits: []string{"Criação de desafios públicos"}},
			{ID: "legend", Name: "Lendário", MinPoints: 50000, Emoji: "👑", Color: "#FF4500",
				Benefits: []string{"Hall da fama", "Todos os benefícios anteriores"}},
		},
		Actions: []ScoreAction{
			{Key: ActionCompleteChallenge, BasePoints: 50, XPReward: 100, Description: "Completou um desafio", Emoji: "🏆"},
			{Key: ActionDailyCheckin, BasePoints: 10, XPReward: 20, Description: "Check-in diário", Emoji: "✅"},
			{Key: ActionCompleteGoal, BasePoints: 100, XPReward: 200, Description: "Concluiu uma meta", Emoji: "🎯"},
			{Key: ActionJournalEntry, BasePoints: 15, XPReward: 25, Description: "Escreveu no diário", Emoji: "📝"},
			{Key: ActionMoodCheckin, BasePoints: 5, XPReward: 10, Description: "Registrou o humor", Emoji: "😊"},
			{Key: ActionCompletePlanTask, BasePoints: 20, XPReward: 40, Description: "Concluiu tarefa do plano", Emoji: "📋"},
			{Key: ActionWinChallenge, BasePoints: 75, XPReward: 150, Description: "Venceu um desafio", Emoji: "🥇"},
			{Key: ActionSendChallenge, BasePoints: 10, XPReward: 15, Description: "Enviou um desafio", Emoji: "📨"},
		},
	}
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// DefaultTables returns the compiled-in tables. The value is shared and
// immutable; use WithOptions to attach an invariant handler.
func DefaultTables() *Tables {
	defaultOnce.Do(func() {
		defaultTables = MustNewTables(defaultDefinition())
	})
	return defaultTables
}

// DefaultDefinition returns a fresh copy of the compiled-in table data.
func DefaultDefinition() Definition {
	return defaultDefinition()
}
