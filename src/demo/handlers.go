package demo

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"

	"depthdemo-server-go/src/core/auth"
	"depthdemo-server-go/src/core/compose"
	imgpkg "depthdemo-server-go/src/core/image"
	"depthdemo-server-go/src/core/session"
	"depthdemo-server-go/src/core/utils"
	"depthdemo-server-go/src/recorder"

	"github.com/gin-gonic/gin"
)

const (
	msgMissingImages = "Please provide a primary and depth image."
	msgWrongPassword = "Incorrect password."
	msgWidthMismatch = "All images must have the same width."
)

// handleLoginPage 显示口令页面，未启用口令时直接进入演示页
func (s *DefaultDemoService) handleLoginPage(c *gin.Context) {
	if !s.gate.Enabled() {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if _, err := s.sessionFromRequest(c); err == nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", loginView{})
}

// handleLogin 校验口令并创建会话
func (s *DefaultDemoService) handleLogin(c *gin.Context) {
	if err := s.gate.Check(c.PostForm("password")); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Warn("口令错误", map[string]interface{}{"client_ip": c.ClientIP()})
		}
		c.HTML(http.StatusUnauthorized, "login.html", loginView{Message: msgWrongPassword})
		return
	}

	if _, err := s.startSession(c); err != nil {
		s.logger.Error(fmt.Sprintf("创建会话失败: %v", err))
		c.HTML(http.StatusInternalServerError, "login.html", loginView{Message: "Could not start a session."})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// handleLogout 结束会话
func (s *DefaultDemoService) handleLogout(c *gin.Context) {
	if sess, err := s.sessionFromRequest(c); err == nil {
		s.sessions.Delete(sess.ID)
		s.logger.Info("会话已结束", map[string]interface{}{"session_id": sess.ID})
	}
	s.clearTokenCookie(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

// handleIndex 显示演示页面
func (s *DefaultDemoService) handleIndex(c *gin.Context) {
	s.renderIndex(c, currentSession(c), http.StatusOK, "")
}

// handleImages 选择示例图片组或上传自定义图片
func (s *DefaultDemoService) handleImages(c *gin.Context) {
	sess := currentSession(c)
	name := c.PostForm("image_set")
	if name == "" {
		name = sess.Inputs().ImageSet
	}

	if name != session.CustomImageSet {
		set, ok := s.findSet(name)
		if !ok {
			s.renderIndex(c, sess, http.StatusBadRequest, fmt.Sprintf("Unknown image set %q.", name))
			return
		}
		s.applySet(sess, set)
		sess.SetResult(nil)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	primary, err := s.readUpload(c, "primary")
	if err != nil {
		s.renderUploadError(c, sess, "primary", err)
		return
	}
	depth, err := s.readUpload(c, "depth")
	if err != nil {
		s.renderUploadError(c, sess, "depth", err)
		return
	}
	ev, err := s.readUpload(c, "ev")
	if err != nil {
		s.renderUploadError(c, sess, "ev", err)
		return
	}

	switch {
	case primary != nil && depth != nil:
		sess.UpdateInputs(func(in *session.Inputs) {
			in.ImageSet = session.CustomImageSet
			in.Primary = primary
			in.Depth = depth
			in.EV = ev
			in.UserUpload = true
		})
		s.logger.Info("自定义图片已上传", map[string]interface{}{
			"session_id": sess.ID,
			"primary":    primary.Meta.Name,
			"depth":      depth.Meta.Name,
			"ev":         ev != nil,
		})
	case primary != nil || depth != nil || ev != nil:
		s.renderIndex(c, sess, http.StatusBadRequest, msgMissingImages)
		return
	default:
		// 切换到自定义但还没有上传时清空所有图片
		sess.UpdateInputs(func(in *session.Inputs) {
			if in.ImageSet != session.CustomImageSet || !in.UserUpload {
				in.Primary, in.Depth, in.EV = nil, nil, nil
				in.UserUpload = false
			}
			in.ImageSet = session.CustomImageSet
		})
	}

	sess.SetResult(nil)
	c.Redirect(http.StatusSeeOther, "/")
}

// readUpload 读取并解码一个上传字段，未上传时返回 nil
func (s *DefaultDemoService) readUpload(c *gin.Context, field string) (*imgpkg.Decoded, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("解析上传字段失败: %v", err)
	}
	if header.Size == 0 {
		return nil, nil
	}

	maxSize := s.config.Images.Security.MaxFileSize
	if header.Size > maxSize {
		return nil, fmt.Errorf("image is larger than %dMB", maxSize/1024/1024)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %v", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %v", err)
	}

	src, err := imgpkg.SourceFromBytes(utils.SanitizeFilename(header.Filename, field), data)
	if err != nil {
		return nil, err
	}
	return s.processor.Load(src)
}

func (s *DefaultDemoService) renderUploadError(c *gin.Context, sess *session.Session, field string, err error) {
	s.logger.Warn(fmt.Sprintf("上传图片 %s 无效: %v", field, err))
	s.renderIndex(c, sess, http.StatusBadRequest, fmt.Sprintf("The %s image could not be read: %v", field, err))
}

// handleSubmit 保存表单参数，合成并记录测试用例
func (s *DefaultDemoService) handleSubmit(c *gin.Context) {
	sess := currentSession(c)

	params := compose.Parameters{
		EVChoice:         formValue(c, "ev"),
		FocusCoordinates: formValue(c, "focus_coordinates"),
		LensSimulation:   formValue(c, "lens_simulation"),
		DepthOfField:     formValue(c, "depth_of_field"),
		FStop:            formValue(c, "fstop"),
		ImageFormat:      formValue(c, "image_format"),
		DepthFormat:      formValue(c, "depth_format"),
	}
	if params.EVChoice != "No" {
		params.EVChoice = "Yes"
	}
	brightness := s.parseBrightness(c.PostForm("brightness"))

	sess.UpdateInputs(func(in *session.Inputs) {
		in.Params = params
		in.Brightness = brightness
	})
	in := sess.Inputs()

	if in.Primary == nil || in.Depth == nil {
		s.renderIndex(c, sess, http.StatusBadRequest, msgMissingImages)
		return
	}

	req := compose.Request{
		Primary:    in.Primary,
		Depth:      in.Depth,
		EV:         in.EV,
		Brightness: in.Brightness,
		Params:     in.Params,
	}

	res, err := s.compositor.Compose(req)
	if err != nil {
		status, message := http.StatusInternalServerError, "Could not compose the images."
		if errors.Is(err, compose.ErrDimensionMismatch) {
			status, message = http.StatusUnprocessableEntity, msgWidthMismatch
		}
		s.renderIndex(c, sess, status, message)
		return
	}

	jpegData, err := imgpkg.JPEGBytes(res.Image, s.config.Images.JPEGQuality)
	if err != nil {
		s.logger.Error(fmt.Sprintf("编码合成图片失败: %v", err))
		s.renderIndex(c, sess, http.StatusInternalServerError, "Could not encode the rendered image.")
		return
	}

	result := &session.Result{
		JPEG:           jpegData,
		Width:          res.Image.Bounds().Dx(),
		Height:         res.Image.Bounds().Dy(),
		SequenceNumber: -1,
	}

	message := ""
	if s.recorder != nil {
		n, err := s.recorder.Record(c.Request.Context(), req, res.Image)
		if err != nil {
			s.logger.Error(fmt.Sprintf("记录测试用例失败: %v", err))
			message = fmt.Sprintf("The image was rendered but the test case could not be saved: %v", err)
		} else {
			result.SequenceNumber = n
		}
	}

	sess.SetResult(result)
	s.renderIndex(c, sess, http.StatusOK, message)
}

// formValue 读取单行文本字段，换行折叠为空格
func formValue(c *gin.Context, key string) string {
	return utils.SingleLine(c.PostForm(key))
}

// parseBrightness 解析亮度滑块，超出范围时截断
func (s *DefaultDemoService) parseBrightness(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0
	}
	if n > s.config.Compose.MaxBrightness {
		return s.config.Compose.MaxBrightness
	}
	return n
}

// handleDownload 下载最近一次合成结果
func (s *DefaultDemoService) handleDownload(c *gin.Context) {
	result := currentSession(c).Result()
	if result == nil {
		c.String(http.StatusNotFound, "no rendered image")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	c.Data(http.StatusOK, "image/jpeg", result.JPEG)
}

// renderIndex 根据会话状态渲染演示页面
func (s *DefaultDemoService) renderIndex(c *gin.Context, sess *session.Session, status int, message string) {
	in := sess.Inputs()
	view := pageView{
		ImageSets:      s.imageSetNames(),
		SelectedSet:    in.ImageSet,
		CustomSet:      session.CustomImageSet,
		Message:        message,
		Params:         in.Params,
		Brightness:     in.Brightness,
		MaxBrightness:  s.config.Compose.MaxBrightness,
		SequenceNumber: -1,
	}

	view.Frames = []frameView{
		{Title: "Primary Image", Src: frameSrc(in.Primary)},
		{Title: "Depth Map", Src: frameSrc(in.Depth)},
		{Title: "EV Minus Image (Optional)", Src: frameSrc(in.EV)},
		{Title: "Rendered Image"},
	}

	if result := sess.Result(); result != nil {
		url := template.URL(imgpkg.DataURL("image/jpeg", result.JPEG))
		view.Frames[3].Src = url
		view.Rendered = true
		view.DownloadURL = url
		view.DownloadName = downloadName
		view.Recorded = result.SequenceNumber >= 0
		view.SequenceNumber = result.SequenceNumber
	}

	for _, item := range []struct {
		role string
		img  *imgpkg.Decoded
	}{{"Primary", in.Primary}, {"Depth", in.Depth}, {"EV", in.EV}} {
		if item.img != nil {
			view.Metadata = append(view.Metadata, metaRow{Role: item.role, Metadata: item.img.Meta})
		}
	}

	c.HTML(status, "index.html", view)
}

// frameSrc 输入图片的 data URL，未提供时为空
func frameSrc(img *imgpkg.Decoded) template.URL {
	if img == nil {
		return ""
	}
	return template.URL(imgpkg.DataURL(imgpkg.MimeType(img.Meta.Format), img.Source.Data))
}

// handleStatus 服务状态
func (s *DefaultDemoService) handleStatus(c *gin.Context) {
	s.addCORSHeaders(c)
	data := StatusData{
		Sessions:       s.sessions.Len(),
		ImageSets:      s.imageSetNames(),
		Compositor:     s.compositor.Stats(),
		ImageProcessor: s.processor.GetMetrics(),
	}
	if s.recorder != nil {
		data.RecorderRoot = s.recorder.Root()
	}
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Demo 服务运行正常",
		Data:    data,
	})
}

// handleTests 列出已记录的测试用例，启用索引时读数据库，否则扫描磁盘
func (s *DefaultDemoService) handleTests(c *gin.Context) {
	s.addCORSHeaders(c)

	if s.index != nil {
		rows, err := s.index.Recent(c.Request.Context(), recentLimit)
		if err != nil {
			s.logger.Error(fmt.Sprintf("查询测试用例失败: %v", err))
			s.respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
		views := make([]TestCaseView, 0, len(rows))
		for _, row := range rows {
			view := TestCaseView{
				SequenceNumber: row.SequenceNumber,
				Dir:            row.Dir,
				HasEV:          row.HasEV,
				CreatedAt:      row.CreatedAt.Format("2006-01-02 15:04:05"),
			}
			brightness := row.Brightness
			view.Brightness = &brightness
			if err := json.Unmarshal(row.Parameters, &view.Params); err != nil {
				s.logger.Warn(fmt.Sprintf("测试用例 %d 参数无法解析: %v", row.SequenceNumber, err))
			}
			views = append(views, view)
		}
		c.JSON(http.StatusOK, APIResponse{Success: true, Data: views})
		return
	}

	cases, err := recorder.List(s.config.Recorder.Root)
	if err != nil {
		s.logger.Error(fmt.Sprintf("扫描测试用例失败: %v", err))
		s.respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]TestCaseView, 0, len(cases))
	for _, tc := range cases {
		views = append(views, TestCaseView{
			SequenceNumber: tc.SequenceNumber,
			Dir:            tc.Dir,
			HasEV:          tc.HasEV,
			Params:         tc.Params,
		})
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: views})
}
