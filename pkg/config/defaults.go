package config

func (c *Config) applyDefaults() {
	if c.Backends.Primary.BaseURL == "" {
		c.Backends.Primary.BaseURL = "http://localhost:11434/v1"
	}
	if c.Backends.Primary.Model == "" {
		c.Backends.Primary.Model = "llama3.1:8b"
	}
	if c.Backends.Secondary.BaseURL == "" {
		c.Backends.Secondary.BaseURL = "https://api.openai.com/v1"
	}
	if c.Backends.Secondary.Model == "" {
		c.Backends.Secondary.Model = "gpt-4o"
	}
	if c.Backends.SecondaryFamily == "" {
		c.Backends.SecondaryFamily = "openai"
	}
	if c.Backends.ScoreRPS <= 0 {
		c.Backends.ScoreRPS = 5
	}

	if c.Voice.STT.BaseURL == "" {
		c.Voice.STT.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Voice.STT.Model == "" {
		c.Voice.STT.Model = "whisper-large-v3"
	}
	if c.Voice.TTS.BaseURL == "" {
		c.Voice.TTS.BaseURL = "http://localhost:8102"
	}
	if c.Voice.TTS.Model == "" {
		c.Voice.TTS.Model = "kokoro"
	}
	if c.Voice.TTS.DefaultVoice == "" {
		c.Voice.TTS.DefaultVoice = "af_nova"
	}

	if c.Gateway.Host == "" {
		c.Gateway.Host = "0.0.0.0"
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = 8100
	}

	if c.Conversation.MaxAgentTurns == 0 {
		c.Conversation.MaxAgentTurns = 3
	}
	if c.Conversation.ContinueThreshold == 0 {
		c.Conversation.ContinueThreshold = 6
	}
	if c.Conversation.PlaybackPollMS == 0 {
		c.Conversation.PlaybackPollMS = 100
	}
	if c.Conversation.AgentsFile == "" {
		c.Conversation.AgentsFile = "agents.json"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
