package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

func TestGuessMediaType(t *testing.T) {
	cases := map[string]string{
		"pic.PNG":                      "image",
		"https://host/pic.jpg?sig=abc": "image",
		"voice.silk":                   "record",
		"song.mp3":                     "record",
		"clip.mp4":                     "video",
		"report.pdf":                   "file",
		"archive.tar.gz":               "file",
		"no-extension":                 "image",
		"weird.xyz":                    "image",
	}
	for url, want := range cases {
		assert.Equal(t, want, guessMediaType(url), "url=%q", url)
	}
}

func TestIsLocalPath(t *testing.T) {
	assert.True(t, isLocalPath("/tmp/a.png"))
	assert.True(t, isLocalPath("./a.png"))
	assert.True(t, isLocalPath("../a.png"))
	assert.False(t, isLocalPath("https://host/a.png"))
	assert.False(t, isLocalPath("a.png"))
}

func TestBuildMessagePayloadString(t *testing.T) {
	payload := buildMessagePayload(config.FormatString, "hi", "77", "https://host/a.png")
	assert.Equal(t, "[CQ:reply,id=77]hi[CQ:image,file=https://host/a.png]", payload)
}

func TestBuildMessagePayloadArray(t *testing.T) {
	payload := buildMessagePayload(config.FormatArray, "hi", "77", "clip.mp4")
	segments, ok := payload.([]onebot.Segment)
	require.True(t, ok)
	require.Len(t, segments, 3)
	assert.Equal(t, "reply", segments[0].Type)
	assert.Equal(t, "77", segments[0].Data["id"])
	assert.Equal(t, "text", segments[1].Type)
	assert.Equal(t, "hi", segments[1].Data["text"])
	assert.Equal(t, "video", segments[2].Type)
	assert.Equal(t, "clip.mp4", segments[2].Data["file"])
}

func TestBuildMessagePayloadTextOnly(t *testing.T) {
	payload := buildMessagePayload(config.FormatArray, "just text", "", "")
	segments, ok := payload.([]onebot.Segment)
	require.True(t, ok)
	require.Len(t, segments, 1)
	assert.Equal(t, "text", segments[0].Type)
}

func TestSendMessageGroupVsPrivate(t *testing.T) {
	client := newFakeClient()

	_, err := SendMessage(context.Background(), client, Target{Kind: TargetGroup, ID: "9"}, "hi", "", "")
	require.NoError(t, err)
	call, ok := client.lastCall()
	require.True(t, ok)
	assert.Equal(t, "send_group_msg", call.Action)
	assert.Equal(t, "9", call.Params["group_id"])

	_, err = SendMessage(context.Background(), client, Target{Kind: TargetPrivate, ID: "42"}, "hi", "", "")
	require.NoError(t, err)
	call, ok = client.lastCall()
	require.True(t, ok)
	assert.Equal(t, "send_private_msg", call.Action)
	assert.Equal(t, "42", call.Params["user_id"])
}

func TestSendMessageLocalMediaAlwaysMarkup(t *testing.T) {
	client := newFakeClient()
	client.format = config.FormatArray // local files still go out as markup

	_, err := SendMessage(context.Background(), client, Target{Kind: TargetPrivate, ID: "42"}, "see this", "", "/tmp/pic.png")
	require.NoError(t, err)

	call, ok := client.lastCall()
	require.True(t, ok)
	assert.Equal(t, "see this\n[CQ:image,file=/tmp/pic.png]", call.Params["message"])
}

func TestSendMessageLocalMediaWithoutText(t *testing.T) {
	client := newFakeClient()

	_, err := SendMessage(context.Background(), client, Target{Kind: TargetPrivate, ID: "42"}, "", "", "./voice.silk")
	require.NoError(t, err)

	call, ok := client.lastCall()
	require.True(t, ok)
	assert.Equal(t, "[CQ:record,file=./voice.silk]", call.Params["message"])
}

func TestSendMessageRemoteMediaUsesFormat(t *testing.T) {
	client := newFakeClient()
	client.format = config.FormatString

	_, err := SendMessage(context.Background(), client, Target{Kind: TargetGroup, ID: "9"}, "look", "", "https://host/a.png")
	require.NoError(t, err)

	call, ok := client.lastCall()
	require.True(t, ok)
	assert.Equal(t, "look[CQ:image,file=https://host/a.png]", call.Params["message"])
}
