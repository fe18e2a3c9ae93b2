package bot

import "fmt"

const (
	slashCommandRankingName        = "ranking"
	slashCommandRankingDescription = "サーバーの会話ランキングを表示します"

	slashCommandRegisterName         = "register"
	slashCommandRegisterDescription  = "このサーバーをWebサイトに登録します（管理者専用）"
	registerChannelOptionName        = "channel"
	registerChannelOptionDescription = "招待リンクを作成するチャンネル"

	messageEphemeralUnknownCommand = ":warning: **不明なコマンドです。**"
	messageEphemeralGuildOnly      = ":warning: **このコマンドはサーバー内でのみ実行できます。**"
	messageEphemeralAdminOnly      = ":warning: **このコマンドは管理者のみ実行できます。**"
	messageEphemeralRankingFailed  = ":warning: **ランキングの取得に失敗しました。**"
	messageEphemeralRegisterFailed = ":warning: **登録処理中にエラーが発生しました。**"
	messageEphemeralNotRanked      = "このサーバーはまだランキングに登録されていません。\n会話を始めるとランキングに参加できます！"

	rankingEmbedTitle  = "📊 サーバー会話密度ランキング"
	rankingEmbedFooter = "🔥は進行中の会話 | 会話終了後30秒でスコア確定"

	registerChannelNotice = "🎉 このサーバーがWebサイトへの登録を開始しました！\n管理者が登録を完了すると、ここに招待リンクが表示されます。"
)

const (
	rankColorGold    = 0xFFD700
	rankColorSilver  = 0xC0C0C0
	rankColorBronze  = 0xCD7F32
	rankColorDefault = 0x5865F2
)

func rankColor(rank int) int {
	switch rank {
	case 1:
		return rankColorGold
	case 2:
		return rankColorSilver
	case 3:
		return rankColorBronze
	default:
		return rankColorDefault
	}
}

func liveMarker(liveScore float64) string {
	if liveScore > 0 {
		return " 🔥"
	}
	return ""
}

func registerEphemeralMessage(webBaseURL, token string) string {
	return fmt.Sprintf(
		"✅ **サーバー登録を開始しました**\n"+
			"以下の手順でWebサイトへの登録を完了してください。\n\n"+
			"1️⃣ %s/register にアクセス\n"+
			"2️⃣ Discordでログイン\n"+
			"3️⃣ 登録トークンを入力\n```\n%s\n```\n"+
			"**このトークンは24時間有効です**",
		webBaseURL, token)
}
